package question

// defaultQuestions 内置题库
var defaultQuestions = []Question{
	{ID: "1", Text: "Who would be the best leader in a zombie apocalypse?", Category: "survival"},
	{ID: "2", Text: "Who would be most likely to become famous?", Category: "personality"},
	{ID: "3", Text: "Who would survive longest on a deserted island?", Category: "survival"},
	{ID: "4", Text: "Who would be the best at keeping a secret?", Category: "trust"},
	{ID: "5", Text: "Who would win in a dance battle?", Category: "fun"},
	{ID: "6", Text: "Who would be the best wingman/wingwoman?", Category: "social"},
	{ID: "7", Text: "Who would be most likely to rob a bank?", Category: "mischief"},
	{ID: "8", Text: "Who would make the best teacher?", Category: "personality"},
	{ID: "9", Text: "Who would be the worst roommate?", Category: "lifestyle"},
	{ID: "10", Text: "Who would be most likely to win a reality TV show?", Category: "entertainment"},
	{ID: "11", Text: "Who would be most likely to start their own business?", Category: "personality"},
	{ID: "12", Text: "Who would be the best at solving a murder mystery?", Category: "intelligence"},
	{ID: "13", Text: "Who would be most likely to become a professional athlete?", Category: "physical"},
	{ID: "14", Text: "Who would be the best travel companion?", Category: "social"},
	{ID: "15", Text: "Who would be most likely to forget their own birthday?", Category: "personality"},
	{ID: "16", Text: "Who would be the best at negotiating a business deal?", Category: "personality"},
	{ID: "17", Text: "Who would be most likely to win a cooking competition?", Category: "skills"},
	{ID: "18", Text: "Who would be the best at giving relationship advice?", Category: "social"},
	{ID: "19", Text: "Who would be most likely to become a millionaire?", Category: "success"},
	{ID: "20", Text: "Who would be the best at organizing a surprise party?", Category: "social"},
}

// DefaultBank 返回内置的 20 道题目
func DefaultBank() *Bank {
	b, err := NewBank(defaultQuestions)
	if err != nil {
		panic(err)
	}
	return b
}
