package valueobject

// Grade словесная оценка среднего балла сайта
type Grade string

const (
	GradeExcellent Grade = "excellent"
	GradeGood      Grade = "good"
	GradeFair      Grade = "fair"
	GradePoor      Grade = "poor"
	GradeUnknown   Grade = "unknown"
)

// GradeFor возвращает оценку по среднему баллу
func GradeFor(avgScore float64) Grade {
	switch {
	case avgScore >= 3.5:
		return GradeExcellent
	case avgScore >= 2.5:
		return GradeGood
	case avgScore >= 1.5:
		return GradeFair
	default:
		return GradePoor
	}
}
