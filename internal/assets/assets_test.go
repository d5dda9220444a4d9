package assets

import (
	"errors"
	"testing"
)

func TestLoadStyle(t *testing.T) {
	t.Parallel()

	if _, err := LoadStyle(DefaultStyleName); err != nil {
		t.Fatalf("LoadStyle(%q) error = %v", DefaultStyleName, err)
	}
	if _, err := LoadStyle("nope"); !errors.Is(err, ErrStyleNotFound) {
		t.Errorf("LoadStyle(nope) error = %v, want ErrStyleNotFound", err)
	}
}

func TestLoadTemplate(t *testing.T) {
	t.Parallel()

	for _, name := range FragmentTemplates {
		content, err := LoadTemplate(name)
		if err != nil {
			t.Fatalf("LoadTemplate(%q) error = %v", name, err)
		}
		if content == "" {
			t.Errorf("LoadTemplate(%q) returned empty content", name)
		}
	}
	if _, err := LoadTemplate("signature"); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("LoadTemplate(signature) error = %v, want ErrTemplateNotFound", err)
	}
}
