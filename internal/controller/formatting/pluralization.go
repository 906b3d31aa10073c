package formatting

// PluralizeConsultations возвращает правильное склонение слова "консультация"
func PluralizeConsultations(count int) string {
	return pluralize(count, "консультация", "консультации", "консультаций")
}

// PluralizeLawyers возвращает правильное склонение слова "юрист"
func PluralizeLawyers(count int) string {
	return pluralize(count, "юрист", "юриста", "юристов")
}

func pluralize(count int, one, few, many string) string {
	if count < 0 {
		count = -count
	}
	if count%10 == 1 && count%100 != 11 {
		return one
	}
	if count%10 >= 2 && count%10 <= 4 && (count%100 < 10 || count%100 >= 20) {
		return few
	}
	return many
}
