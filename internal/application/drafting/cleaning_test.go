package drafting

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanFacts(t *testing.T) {
	assert.Equal(t, "一、事實概述：緣被告駕車。", CleanFacts("好的，以下是內容：\n一、事實概述：緣被告駕車。"))
	assert.Equal(t, "一、緣被告駕車。", CleanFacts("<think>draft</think>一、緣被告駕車。"))
	assert.Equal(t, "沒有標記", CleanFacts("  沒有標記 "))
}

func TestCleanCompensation(t *testing.T) {
	reply := "（一）醫療費用：10,000元\n（二）慰撫金：50,000元\n綜上所述，共計60,000元。\n綜上所陳，..."
	assert.Equal(t, "（一）醫療費用：10,000元\n（二）慰撫金：50,000元", CleanCompensation(reply))
	assert.Equal(t, "（一）醫療費用：10,000元", CleanCompensation("（一）醫療費用：10,000元"))
}

func TestCleanConclusion(t *testing.T) {
	assert.Equal(t, "綜上所陳，被告應賠償原告60000元。", CleanConclusion("前言\n綜上所陳，被告應賠償原告60000元。"))
	assert.Equal(t, "只有內容", CleanConclusion("只有內容"))
}

func TestAssemble(t *testing.T) {
	got := Assemble("一、**事實**", "二、按「NO LAW", "（一）費用\n\n\n\n", "## 綜上所陳")
	assert.Equal(t, "一、事實\n\n二、按「NO LAW\n\n（一）費用\n\n 綜上所陳", got)
}
