package casefile

// PartiesPrompt asks for the names of all plaintiffs and defendants.
func PartiesPrompt(facts string) string {
	return `請你幫我從以下車禍案件的事故詳情中提取並列出所有原告和被告的姓名，並只能用以下格式輸出:
原告:原告1,原告2...
被告:被告1,被告2...

以下是本起車禍的事故詳情：
` + facts + `
備註:
如果未提及原告或被告的姓名或代稱需寫為"未提及"
你只需要列出原告和被告的姓名，請不要輸出其他多餘的內容
`
}

func MinorDefendantPrompt(facts string) string {
	return yesNoPrompt("被告是否為未成年人", "如果未提及被告的年齡就判斷為否", "被告是不是未成年人", facts)
}

func EmployeeDefendantPrompt(facts string) string {
	return yesNoPrompt("被告是否為受僱人", "如果未提及被告是否為正在執行職務的受僱人就判斷為否", "被告在車禍發生時是不是正在執行職務的受僱人", facts)
}

func AnimalCausedPrompt(facts string) string {
	return yesNoPrompt("車禍是否由動物造成", "如果未提及車禍是否由動物造成就判斷為否", "車禍是否由動物造成", facts)
}

func yesNoPrompt(label, fallback, question, facts string) string {
	return `請你幫我從以下車禍案件的事故詳情中判斷` + question + `，並只能用以下格式輸出:
` + label + `:(是/否)

以下是本起車禍的事故詳情：
` + facts + `
備註:
` + fallback + `
請依照格式輸出，不要輸出其他多餘的內容
輸出時記得按照格式在是或否前加上:"` + label + `:"
`
}
