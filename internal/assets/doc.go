// Package assets provides the fragment templates and CSS styles used to
// render report fragments.
//
// # Loader Architecture
//
//	AssetLoader (interface)
//	    │
//	    ├── EmbeddedLoader    - loads from the go:embed filesystem
//	    ├── FilesystemLoader  - loads from a custom directory on disk
//	    └── AssetResolver     - chain of loaders, custom before embedded
//
// AssetResolver lets a deployment override a single template (for example
// only "step") while keeping the built-in ones for everything else.
//
// # Directory Structure
//
//	{basePath}/
//	├── styles/
//	│   └── {name}.css
//	└── templates/
//	    └── {name}.html          # body, step, sample, review, or custom
//
// Templates are html/template sources executed against the fragment data.
//
// # Security
//
// Asset names are limited to ASCII letters, digits, '-' and '_'.
// FilesystemLoader reads through os.Root, which rejects symlinks leaving the
// asset directory.
package assets
