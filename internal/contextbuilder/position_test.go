package contextbuilder

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
)

func TestIdentifierAt(t *testing.T) {
	line := "const total = computeTotal(items);"

	tests := []struct {
		column int
		want   string
	}{
		{1, "const"},
		{8, "total"},
		{12, "total"}, // just past the word
		{13, ""},      // on '='
		{15, "computeTotal"},
		{22, "computeTotal"},
		{28, "items"},
		{100, ""},
	}

	for _, tt := range tests {
		if got := IdentifierAt(line, tt.column); got != tt.want {
			t.Errorf("IdentifierAt(col %d) = %q, want %q", tt.column, got, tt.want)
		}
	}
}

func TestGetContextForPosition(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeMem(t, fs, "app.jsx", `import { Cache } from './cache';
const total = computeTotal(items);
const store = new Cache();
const view = <Button label="x" />;
const LIMIT = 10;
export default Config;
`)
	b := newBuilder(t, fs, nil, 0)

	tests := []struct {
		line, column int
		id, kind     string
	}{
		{2, 15, "computeTotal", KindFunction},
		{2, 8, "total", KindVariable},
		{3, 19, "Cache", KindClass},
		{4, 16, "Button", KindComponent},
		{5, 8, "LIMIT", KindVariable},
		{6, 16, "Config", KindUnknown},
		{2, 13, "", KindUnknown},
	}

	for _, tt := range tests {
		pos, err := b.GetContextForPosition("app.jsx", tt.line, tt.column)
		if err != nil {
			t.Fatalf("GetContextForPosition failed: %v", err)
		}
		if pos.Identifier != tt.id || pos.IdentifierKind != tt.kind {
			t.Errorf("line %d col %d = (%q, %q), want (%q, %q)", tt.line, tt.column, pos.Identifier, pos.IdentifierKind, tt.id, tt.kind)
		}
		if pos.Context == nil || pos.Context.Type != TypeFull {
			t.Error("Expected a full context")
		}
	}
}

func TestGetContextForPosition_Contract(t *testing.T) {
	b := newBuilder(t, afero.NewMemMapFs(), nil, 0)

	if _, err := b.GetContextForPosition("a.js", 1, 0); !errors.Is(err, ErrInvalidColumn) {
		t.Errorf("err = %v, want ErrInvalidColumn", err)
	}

	pos, err := b.GetContextForPosition("missing.js", 1, 1)
	if err != nil {
		t.Fatalf("GetContextForPosition failed: %v", err)
	}
	if pos.Identifier != "" || pos.IdentifierKind != KindUnknown {
		t.Errorf("pos = %+v, want no identifier for unreadable file", pos)
	}
}
