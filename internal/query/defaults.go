package query

// DefaultIgnorePatterns lists the build artifacts, dependency caches, media,
// and editor litter excluded from every ingestion unless an include pattern
// reclaims them.
var DefaultIgnorePatterns = []string{
	// Python
	"*.pyc", "*.pyo", "*.pyd", "__pycache__", ".pytest_cache", ".coverage",
	".tox", ".nox", ".mypy_cache", ".ruff_cache", ".hypothesis",
	"poetry.lock", "Pipfile.lock",
	// JavaScript and Node
	"node_modules", "bower_components", "package-lock.json", "yarn.lock",
	".npm", ".yarn", ".pnpm-store", "bun.lock", "bun.lockb",
	// Java and JVM build output
	"*.class", "*.jar", "*.war", "*.ear", "*.nar", ".gradle", "target",
	// Compiled objects and binaries
	"*.o", "*.obj", "*.dll", "*.dylib", "*.exe", "*.lib", "*.out", "*.a", "*.pdb",
	// Ruby
	"*.gem", ".bundle", "Gemfile.lock", ".ruby-version",
	// Rust
	"Cargo.lock", "*.rs.bk",
	// .NET
	"obj", "*.suo", "*.user", "*.nupkg",
	// Go
	"go.sum",
	// Version control metadata
	".git", ".svn", ".hg", ".gitignore", ".gitattributes", ".gitmodules",
	// Images and media
	"*.svg", "*.png", "*.jpg", "*.jpeg", "*.gif", "*.ico", "*.pdf",
	"*.mov", "*.mp4", "*.mp3", "*.wav",
	// Virtual environments
	"venv", ".venv", "env", ".env", "virtualenv",
	// Editors and IDEs
	".idea", ".vscode", ".vs", "*.swp", "*.swo", "*.swn", ".settings",
	// Caches and temporary files
	"*.log", "*.bak", "*.tmp", "*.temp", ".cache", ".sass-cache",
	".eslintcache", ".DS_Store", "Thumbs.db", "desktop.ini",
	// Build directories and packaging artifacts
	"build", "dist", "out", "*.egg-info", "*.egg", "*.whl", "*.so",
	// Generated web output
	".docusaurus", ".next", ".nuxt", "*.min.js", "*.min.css", "*.map",
	// Infrastructure state
	"*.tfstate", "*.tfstate.backup", ".terraform", "vendor",
}
