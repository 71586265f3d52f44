package tokenizer

import (
	"errors"

	"github.com/pkoukk/tiktoken-go"
)

type openAICounter struct {
	encoding *tiktoken.Tiktoken
	name     string
}

func (counter openAICounter) Name() string {
	return counter.name
}

func (counter openAICounter) CountString(input string) (int, error) {
	if counter.encoding == nil {
		return 0, errors.New("nil tiktoken encoder")
	}
	tokenIdentifiers := counter.encoding.Encode(input, nil, nil)
	return len(tokenIdentifiers), nil
}

func newTiktokenCounter(model string) (Counter, error) {
	modelEncoding, encodingError := tiktoken.EncodingForModel(model)
	if encodingError != nil {
		return nil, encodingError
	}
	if modelEncoding == nil {
		return nil, errors.New("no encoding resolved for model " + model)
	}
	return openAICounter{encoding: modelEncoding, name: model}, nil
}

func newEncodingCounter(encodingName string) (Counter, error) {
	namedEncoding, encodingError := tiktoken.GetEncoding(encodingName)
	if encodingError != nil {
		return nil, encodingError
	}
	return openAICounter{encoding: namedEncoding, name: encodingName}, nil
}
