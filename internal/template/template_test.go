package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender_Substitution(t *testing.T) {
	got := Render("Hi {{nama}}, total {{jumlah}}", map[string]string{"nama": "Ali"})
	assert.Equal(t, "Hi Ali, total ", got)
}

func TestRender_WhitespaceTolerated(t *testing.T) {
	got := Render("Hi {{ nama }}!", map[string]string{"nama": "Siti"})
	assert.Equal(t, "Hi Siti!", got)
}

func TestRender_UnmatchedSyntaxLeftVerbatim(t *testing.T) {
	got := Render("{{nama}} {not a var} {{bad name}}", map[string]string{"nama": "Ali"})
	assert.Equal(t, "Ali {not a var} {{bad name}}", got)
}

func TestRender_NilVars(t *testing.T) {
	assert.Equal(t, "Hi ", Render("Hi {{nama}}", nil))
}

func TestExtractVariables(t *testing.T) {
	got := ExtractVariables("Hi {{nama}}, your {{item}} is ready. See you, {{nama}}!")
	assert.Equal(t, []string{"nama", "item"}, got)
}

func TestExtractVariables_None(t *testing.T) {
	assert.Empty(t, ExtractVariables("plain text"))
}
