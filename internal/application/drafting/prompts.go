package drafting

import (
	"fmt"
	"strings"

	"github.com/turtacn/TrafficLaw-RAG/internal/domain/compensation"
)

const verdictFormat = `請僅回答 "pass" 或 "fail"，並提供簡短的理由。格式：
[結果]: [pass/fail]
[理由]: [簡短說明為何通過或失敗]`

// CaseSummaryPrompt asks for the short summary the fact check compares
// against.
func CaseSummaryPrompt(accidentFacts, injuries string) string {
	return fmt.Sprintf(`請根據以下車禍案件的事故經過與受傷情形，整理一段不超過200字的摘要，需包含事故時間、地點、經過、當事人以及受傷情形，不要加入任何評論或賠償金額。

事故經過：
%s

受傷情形：
%s
`, accidentFacts, injuries)
}

// FactsPrompt drafts section 一 from the accident facts, modelled on the
// reference indictment's fact section when one is available.
func FactsPrompt(accidentFacts, referenceFacts string) string {
	var b strings.Builder
	b.WriteString(`你是一個台灣原告律師，你現在要幫忙完成車禍起訴狀裏的案件事實陳述的部分，你只需要根據下列格式進行輸出，並確保段落內容完整，禁止輸出格式以外的任何東西：
一、事實概述：完整描述事故經過，要使用"緣被告"做開頭，並且在這段中都要以"原告""被告"作人物代稱，請絕對不要自己憑空杜撰當事人的姓名。
備註：請記得在"事實概述"前面加上"一、"，禁止捏造故事，不可提及賠償金額。
`)
	if strings.TrimSpace(referenceFacts) != "" {
		b.WriteString("\n參考起訴狀的事實陳述（僅參考寫法，不可引用其內容）：\n")
		b.WriteString(referenceFacts)
		b.WriteString("\n")
	}
	b.WriteString("\n案件事實：\n")
	b.WriteString(accidentFacts)
	b.WriteString("\n")
	return b.String()
}

// FactsCheckPrompt asks whether the drafted facts agree with the summary.
func FactsCheckPrompt(facts, summary string) string {
	return fmt.Sprintf(`請評估生成的事故事實段落是否與摘要一致，並檢查是否遺漏重要資訊。

摘要：
%s

生成的事故事實段落：
%s

評估標準：
1. 內容是否與摘要一致，如事故緣由、受傷情形等資訊
2. 是否遺漏任何重要資訊
3. 是否符合法律文書的格式和語言要求
4. 不可包含賠償金額

%s
`, summary, facts, verdictFormat)
}

// CompensationInput feeds the itemised damages stage.
type CompensationInput struct {
	Injuries          string
	CompensationFacts string
	AverageAmount     float64
	CaseType          string
	PlaintiffsLine    string
}

// CompensationPrompt drafts the itemised damages.
func CompensationPrompt(in CompensationInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, `你是一個台灣原告律師，請根據下列資訊整理車禍起訴狀的損害賠償項目。
請使用（一）、（二）等標記依次列出：[賠償項目]：[金額]元，隨後換行說明此項請求的原因。金額需準確，不可模糊，若無明確金額請從輸入中查找相關金額。
案件類型為「%s」，若涉及多名原告，請按原告分別列出各自的賠償項目。
不要計算總額，不要輸出「綜上所陳」段落，禁止輸出Markdown格式或任何格式以外的東西。
`, in.CaseType)
	if in.PlaintiffsLine != "" {
		fmt.Fprintf(&b, "\n原告：%s\n", in.PlaintiffsLine)
	}
	if in.AverageAmount > 0 {
		fmt.Fprintf(&b, "\n相似案件的平均請求總額約為%s元，僅供參考。\n", compensation.FormatAmount(in.AverageAmount))
	}
	fmt.Fprintf(&b, "\n受傷情形：\n%s\n\n賠償請求：\n%s\n", in.Injuries, in.CompensationFacts)
	return b.String()
}

// CompensationCheckPrompt asks whether the itemised damages cover the
// claims correctly.
func CompensationCheckPrompt(items string, in CompensationInput) string {
	return fmt.Sprintf(`請評估生成的損害賠償項目是否完整且正確。

受傷情形：
%s

賠償請求：
%s

原告：%s

生成的損害賠償項目：
%s

評估標準：
1. 使用（一）、（二）或者1.、2.等標記區分不同賠償項目
2. 每個項目有明確的金額和原因說明，且金額與賠償請求一致
3. 如有多位原告，每位原告的賠償項目分別列出
4. 金額使用阿拉伯數字
5. 不可出現總和或總計

%s
`, in.Injuries, in.CompensationFacts, in.PlaintiffsLine, items, verdictFormat)
}

// CalcTagsPrompt asks for one <calculate> tag per plaintiff.
func CalcTagsPrompt(items, plaintiffsLine string) string {
	return fmt.Sprintf(`請根據以下損害賠償項目，為每位原告輸出一個計算標籤，格式為：
<calculate>原告名稱 金額1 金額2 金額3</calculate>
若只有一位原告且無姓名，請使用 <calculate>default 金額1 金額2</calculate>。
標籤內只能包含原告名稱與數字，不可包含文字描述、加號、等號或其他符號。一位原告只能有一個標籤。

原告：%s

損害賠償項目：
%s
`, plaintiffsLine, items)
}

// CalcTagsCheckPrompt asks whether the tags match the itemised damages.
func CalcTagsCheckPrompt(items, tags string) string {
	return fmt.Sprintf(`請評估生成的計算標籤是否完整涵蓋所有賠償項目。

評估標準：
1. 是否為每位原告生成一個計算標籤
2. 標籤中的金額是否與賠償項目中的金額一致
3. 計算標籤格式是否正確 (<calculate>原告名稱/代稱 金額1 金額2 金額3</calculate>)，代稱可以是"default"
4. 標籤內是否只包含數字，不包含文字描述、加號、等號、逗號或其他分隔符
5. 一位原告只能有一個標籤，多個原告則多個標籤

賠償項目：
%s

生成的計算標籤：
%s

%s
`, items, tags, verdictFormat)
}

// ConclusionPrompt drafts the 綜上所陳 paragraph around the computed totals.
func ConclusionPrompt(items, totals, plaintiffsLine string) string {
	return fmt.Sprintf(`你是一個台灣原告律師，請根據以下損害賠償項目撰寫起訴狀的總結段落。
段落必須以"綜上所陳"開頭，逐項列出各賠償項目與金額，並使用以下已計算好的總額，不可自行更改金額：
%s

最後以"爰依法提起本訴，請求被告賠償原告上述損害"的意旨作結。禁止輸出Markdown格式。

原告：%s

損害賠償項目：
%s
`, totals, plaintiffsLine, items)
}

// ConclusionCheckPrompt asks whether the final damages text is well formed.
func ConclusionCheckPrompt(items, conclusion string) string {
	return fmt.Sprintf(`請評估賠償請求段落是否符合標準法律文書格式。

賠償請求段落：
%s

%s

評估標準：
1. 使用（一）、（二）或者1.、2.等標記區分不同賠償項目
2. 每個項目有明確的金額和原因說明
3. 如有多位原告，每位原告的賠償項目分別列出
4. 金額格式統一且清晰（使用阿拉伯數字）
5. 在綜上所陳部分以前並無總和或總計
6. 綜上所陳部分是否將賠償請求段落列出的所有賠償項目包含在內（所有項目都必須包含在內）

%s
`, items, conclusion, verdictFormat)
}

// LawApplicabilityPrompt asks whether one article applies to the accident.
func LawApplicabilityPrompt(accidentFacts, injuries, number, content string) string {
	return fmt.Sprintf(`請判斷以下民法條文是否適用於此車禍案件。

事故經過：
%s

受傷情形：
%s

民法第%s條：
%s

%s
`, accidentFacts, injuries, number, content, verdictFormat)
}
