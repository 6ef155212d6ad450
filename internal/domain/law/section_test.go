package law

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSection(t *testing.T) {
	got := BuildSection([]Citation{
		{Number: "184", Content: "第184條：因故意或過失，不法侵害他人之權利者，負損害賠償責任。"},
		{Number: "191-2", Content: "第191-2條：汽車在使用中加損害於他人者，駕駛人應賠償因此所生之損害。"},
	})
	assert.Equal(t,
		"二、按「因故意或過失，不法侵害他人之權利者，負損害賠償責任。」、「汽車在使用中加損害於他人者，駕駛人應賠償因此所生之損害。」"+
			"民法第184條、第191-2條分別定有明文。查被告因上開侵權行為，使原告受有下列損害，依前揭規定，被告應負損害賠償責任：",
		got)
}

func TestBuildSection_NoLaw(t *testing.T) {
	assert.Equal(t, "二、按「NO LAW", BuildSection(nil))
}
