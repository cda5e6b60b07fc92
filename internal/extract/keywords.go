package extract

import "regexp"

// KeywordRule 句子评分规则，每条规则在一个句子中最多计分一次
type KeywordRule struct {
	Name    string
	Pattern *regexp.Regexp
	Weight  float64
}

// DefaultKeywordRules 临床术语权重表
var DefaultKeywordRules = []KeywordRule{
	{"diagnosis", regexp.MustCompile(`(?i)\bdiagnos(?:is|es|tic|ed)\b`), 3.0},
	{"treatment", regexp.MustCompile(`(?i)\btreat(?:ment|ments|ed|ing)?\b`), 3.0},
	{"management", regexp.MustCompile(`(?i)\bmanage(?:ment|d)?\b`), 3.0},

	{"therapy", regexp.MustCompile(`(?i)\btherap(?:y|ies|eutic)\b`), 2.5},
	{"complication", regexp.MustCompile(`(?i)\bcomplications?\b`), 2.5},
	{"prognosis", regexp.MustCompile(`(?i)\bprognos(?:is|tic)\b`), 2.5},

	{"symptom", regexp.MustCompile(`(?i)\bsymptom(?:s|atic)?\b`), 2.0},
	{"clinical", regexp.MustCompile(`(?i)\bclinical(?:ly)?\b`), 2.0},
	{"patient", regexp.MustCompile(`(?i)\bpatients?\b`), 2.0},
	{"disease", regexp.MustCompile(`(?i)\bdiseases?\b`), 2.0},
	{"outcome", regexp.MustCompile(`(?i)\boutcomes?\b`), 2.0},
	{"etiology", regexp.MustCompile(`(?i)\betiolog(?:y|ic)\b`), 2.0},
	{"pathogenesis", regexp.MustCompile(`(?i)\bpathogen(?:esis|ic)\b`), 2.0},
	{"manifestation", regexp.MustCompile(`(?i)\bmanifestations?\b`), 2.0},

	{"incidence", regexp.MustCompile(`(?i)\bincidence\b`), 1.5},
	{"prevalence", regexp.MustCompile(`(?i)\bprevalence\b`), 1.5},
	{"risk", regexp.MustCompile(`(?i)\brisks?\b`), 1.5},
	{"test", regexp.MustCompile(`(?i)\btest(?:s|ing)?\b`), 1.5},
	{"laboratory", regexp.MustCompile(`(?i)\blaboratory\b`), 1.5},
	{"imaging", regexp.MustCompile(`(?i)\bimaging\b`), 1.5},
	{"screening", regexp.MustCompile(`(?i)\bscreen(?:ing|ed)?\b`), 1.5},
}

// DefaultBonusRules 统计与剂量信息的加分
var DefaultBonusRules = []KeywordRule{
	{"percentage", regexp.MustCompile(`\d+(?:\.\d+)?\s?%`), 2.0},
	{"statistic", regexp.MustCompile(`(?i)\bp\s?[<=>≤]\s?0?\.\d+|\bCI\b|\bconfidence intervals?\b|\bodds ratio\b|\brelative risk\b`), 2.0},
	{"dosage", regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s?(?:mg|mcg|µg|g|meq|mmol|units?|iu|ml)\s?/\s?(?:kg|dl|l|day|m2|hr|h)\b`), 1.5},
}

// scoreSentence 命中的每条规则计一次分
func scoreSentence(sentence string, rules ...[]KeywordRule) float64 {
	score := 0.0
	for _, table := range rules {
		for _, r := range table {
			if r.Pattern.MatchString(sentence) {
				score += r.Weight
			}
		}
	}
	return score
}
