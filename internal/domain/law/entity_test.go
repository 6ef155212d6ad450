package law

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractNumbers(t *testing.T) {
	got := ExtractNumbers("民法第184條第1項前段, 第191-2條,第193 條第1項,第195條,道路交通安全規則")
	assert.Equal(t, []string{"184", "191-2", "193", "195"}, got)
	assert.Empty(t, ExtractNumbers(""))
}

func TestFindNumbers(t *testing.T) {
	got := FindNumbers("二、按「因故意」民法第184條、第191-2條、第184條分別定有明文，另依第193 條")
	assert.Equal(t, []string{"184", "191-2", "193"}, got)
	assert.Empty(t, FindNumbers("NO LAW"))
}

func TestParseCorpus(t *testing.T) {
	text := "第184條：因故意或過失，不法侵害他人之權利者，負損害賠償責任。\n" +
		"第191-2條:汽車、機車或其他非依軌道行駛之動力車輛，在使用中加損害於他人者，駕駛人應賠償因此所生之損害。\n" +
		"第193 條： 不法侵害他人之身體或健康者，對於被害人因此喪失或減少勞動能力，應負損害賠償責任。\n"

	got := ParseCorpus(text)
	require.Len(t, got, 3)
	assert.Equal(t, "184", got[0].Number)
	assert.Equal(t, "第184條：因故意或過失，不法侵害他人之權利者，負損害賠償責任。", got[0].Content)
	assert.Equal(t, "191-2", got[1].Number)
	assert.Equal(t, "193", got[2].Number)
	assert.Equal(t, "不法侵害他人之身體或健康者，對於被害人因此喪失或減少勞動能力，應負損害賠償責任。", got[2].Body())
}

func TestParseCorpus_InlineReferenceKeptInBody(t *testing.T) {
	got := ParseCorpus("第187條：無行為能力人，依第一項規定不能受損害賠償時，法院得斟酌。")
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Content, "依第一項規定")
}

func TestParseCorpus_DuplicateKeepsLast(t *testing.T) {
	got := ParseCorpus("第184條：舊。第184條：新。")
	require.Len(t, got, 1)
	assert.Equal(t, "第184條：新。", got[0].Content)
}

func TestCitationBody(t *testing.T) {
	assert.Equal(t, "內容", Citation{Content: "第1條：內容"}.Body())
	assert.Equal(t, "內容", Citation{Content: "第1條: 內容"}.Body())
	assert.Equal(t, "無冒號", Citation{Content: "無冒號"}.Body())
	assert.Equal(t, "a：b", Citation{Content: "x：a：b"}.Body())
}

func TestSortNumbers(t *testing.T) {
	numbers := []string{"195", "191-2", "184", "28", "191", "193"}
	SortNumbers(numbers)
	assert.Equal(t, []string{"28", "184", "191", "191-2", "193", "195"}, numbers)
}

func TestCompareNumbers(t *testing.T) {
	assert.Equal(t, 0, CompareNumbers("184", "184"))
	assert.Equal(t, -1, CompareNumbers("9", "10"))
	assert.Equal(t, 1, CompareNumbers("191-10", "191-2"))
}
