package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "hello world", "hello world"},
		{"tags stripped", "<p>hello <b>world</b></p>", "hello world"},
		{"script removed", "<script>alert(1)</script>hi", "hi"},
		{"entities decoded", "fish &amp; chips", "fish & chips"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.in))
		})
	}
}

func TestLenAndPrefix(t *testing.T) {
	body := "<div>ação rápida</div>"
	assert.Equal(t, 11, Len(body))
	assert.Equal(t, "ação", Prefix(body, 4))
	assert.Equal(t, "ação rápida", Prefix(body, 100))
}
