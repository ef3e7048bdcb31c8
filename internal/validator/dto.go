package validator

type StartAttemptRequest struct {
	ExamID uint `json:"exam_id" validate:"required"`
}

type NavigateRequest struct {
	Rank int `json:"rank"`
}

// SubmitAnswerRequest replaces the selection for the attempt's current
// question. An empty list clears the selection.
type SubmitAnswerRequest struct {
	AnswerIDs []uint `json:"answer_ids" validate:"max=50,dive,required"`
}

type MoveQuestionRequest struct {
	Direction string `json:"direction" validate:"required,move_direction"`
}

type AnswerCreateRequest struct {
	Content   string `json:"content" validate:"required,not_blank,max=2000"`
	IsCorrect bool   `json:"is_correct"`
}

type QuestionCreateRequest struct {
	Content string                `json:"content" validate:"required,not_blank,max=10000"`
	Answers []AnswerCreateRequest `json:"answers" validate:"required,min=1,max=20,dive"`
}
