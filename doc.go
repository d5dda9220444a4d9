// Package reportpdf assembles per-entity PDF reports from rendered fragments.
//
// # Quick Start
//
// Describe the work items, pick a renderer, and run:
//
//	pool := reportpdf.NewRendererPool(reportpdf.ResolvePoolSize(0))
//	defer pool.Close()
//
//	out, err := reportpdf.Run(ctx, []reportpdf.WorkItem{
//	    {ID: "42", Steps: []reportpdf.Section{{Title: "Weigh"}}},
//	}, reportpdf.ManagerDeps{
//	    FactoryDeps: reportpdf.FactoryDeps{Renderer: pool},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer out.Close()
//	io.Copy(w, out)
//
// The output is a stream over a temporary file, removed when the stream is
// closed. out.Filename and out.ContentType describe it.
//
// # Assembly
//
// Each work item is produced by a Factory, which runs its fragment tasks
// concurrently:
//
//  1. The body, then every step, sample and the review are rendered
//  2. Attachments are resolved, downloaded and converted to PDF
//  3. The pages of every fragment are counted, with retries
//
// The WorkflowManager runs one Factory per item. When all succeed it lays
// out the fragments in order (body, steps, samples, attachments, review),
// merges them and writes a bookmark outline: one root per item, the body
// headings below it, and one group node per non-empty section. Outline
// pages are zero-based.
//
// With WithBundle, every item becomes its own PDF and the results are
// archived into one zip.
//
// # Failure and Abort
//
// The first task error stops the run: remaining tasks are abandoned, every
// temporary file is deleted and the error is reported as a *TaskError naming
// the item and task. Cancelling the context aborts the run silently; Run
// then returns an error matching ErrAborted.
//
// # Custom Assets
//
// Override built-in styles and fragment templates using AssetLoader:
//
//	loader, err := reportpdf.NewAssetLoader("/path/to/assets")
//	pool := reportpdf.NewRendererPool(2, reportpdf.WithAssetLoader(loader))
//
// Asset directory structure:
//
//	assets/
//	├── styles/
//	│   └── report.css
//	└── templates/
//	    ├── body.html
//	    ├── step.html
//	    ├── sample.html
//	    └── review.html
//
// Missing files fall back to the embedded defaults.
package reportpdf
