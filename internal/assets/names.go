package assets

// DefaultStyleName is the name of the built-in CSS style.
const DefaultStyleName = "report"

// Built-in fragment template names.
const (
	TemplateBody   = "body"
	TemplateStep   = "step"
	TemplateSample = "sample"
	TemplateReview = "review"
)

// FragmentTemplates lists the built-in fragment templates.
var FragmentTemplates = []string{TemplateBody, TemplateStep, TemplateSample, TemplateReview}
