package translator

import "github.com/nerdneilsfield/manga-translator-go/pkg/providers"

// Languages 短语言代码到显示名称的静态映射，仅用于提示词展示，
// 顺序与上游流水线一致。
var Languages = []providers.Language{
	{Code: "CHS", Name: "Simplified Chinese"},
	{Code: "CHT", Name: "Traditional Chinese"},
	{Code: "CSY", Name: "Czech"},
	{Code: "NLD", Name: "Dutch"},
	{Code: "ENG", Name: "English"},
	{Code: "FRA", Name: "French"},
	{Code: "DEU", Name: "German"},
	{Code: "HUN", Name: "Hungarian"},
	{Code: "ITA", Name: "Italian"},
	{Code: "JPN", Name: "Japanese"},
	{Code: "KOR", Name: "Korean"},
	{Code: "POL", Name: "Polish"},
	{Code: "PTB", Name: "Portuguese"},
	{Code: "ROM", Name: "Romanian"},
	{Code: "RUS", Name: "Russian"},
	{Code: "ESP", Name: "Spanish"},
	{Code: "TRK", Name: "Turkish"},
	{Code: "UKR", Name: "Ukrainian"},
	{Code: "VIN", Name: "Vietnamese"},
	{Code: "CNR", Name: "Montenegrin"},
	{Code: "SRP", Name: "Serbian"},
	{Code: "HRV", Name: "Croatian"},
	{Code: "ARA", Name: "Arabic"},
	{Code: "THA", Name: "Thai"},
	{Code: "IND", Name: "Indonesian"},
}

// LanguageName 按代码查找显示名称，未知代码原样返回
func LanguageName(code string) string {
	for _, lang := range Languages {
		if lang.Code == code {
			return lang.Name
		}
	}
	return code
}
