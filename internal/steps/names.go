package steps

import "strings"

// Canonicalize приводит сырое имя шага к каноническому имени реестра.
//
// Правила:
//  1. Точное совпадение с именем реестра имеет приоритет.
//  2. Динамические имена вида "[RULE_MP]_SUBMIT" матчатся по суффиксу:
//     сырое имя "CUSTOMER_X_SUBMIT" попадает в "[RULE_MP]_SUBMIT",
//     если оканчивается на "SUBMIT".
//
// Возвращает ("", false), если соответствие не найдено.
func Canonicalize(stepName string, names []string) (string, bool) {
	for _, name := range names {
		if stepName == name {
			return name, true
		}
	}

	for _, name := range names {
		suffix, ok := dynamicSuffix(name)
		if !ok {
			continue
		}
		if strings.HasSuffix(stepName, suffix) {
			return name, true
		}
	}

	return "", false
}

// dynamicSuffix возвращает суффикс динамического имени "[PREFIX]_SUFFIX".
func dynamicSuffix(name string) (string, bool) {
	if !strings.HasPrefix(name, "[") {
		return "", false
	}
	idx := strings.Index(name, "]_")
	if idx < 0 {
		return "", false
	}
	return name[idx+len("]_"):], true
}
