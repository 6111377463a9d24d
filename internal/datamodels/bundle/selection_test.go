package bundle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelection_ChooseReplaces(t *testing.T) {
	s := Selection{}
	s.Choose(1, 10).Choose(1, 11)
	assert.Len(t, s, 1)
	assert.Equal(t, int64(11), s[1])
}

func TestSelection_Signature(t *testing.T) {
	a := Selection{2: 21, 1: 10}
	b := Selection{1: 10, 2: 21}
	assert.Equal(t, "1:10,2:21", a.Signature())
	assert.Equal(t, a.Signature(), b.Signature())
	assert.Equal(t, "", Selection{}.Signature())
	assert.Equal(t, "", Selection(nil).Signature())
}
