package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"ikk-backend/internal/models"
)

var ErrQuestionNotFound = errors.New("question not found")

// QuestionRepository handles questionnaire catalog database operations
type QuestionRepository struct {
	db *sql.DB
}

// NewQuestionRepository creates a new question repository
func NewQuestionRepository(db *sql.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// GetAll retrieves all questions in catalog order
func (r *QuestionRepository) GetAll() ([]models.Question, error) {
	query := `
		SELECT id, dimension, column_code, text, description, sort_order
		FROM questions
		ORDER BY sort_order
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	defer rows.Close()

	var questions []models.Question
	for rows.Next() {
		var question models.Question
		if err := rows.Scan(
			&question.ID,
			&question.Dimension,
			&question.ColumnCode,
			&question.Text,
			&question.Description,
			&question.SortOrder,
		); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, question)
	}

	return questions, nil
}

// GetByColumnCode retrieves a question by its column code
func (r *QuestionRepository) GetByColumnCode(columnCode string) (*models.Question, error) {
	query := `
		SELECT id, dimension, column_code, text, description, sort_order
		FROM questions
		WHERE column_code = $1
	`

	question := &models.Question{}
	err := r.db.QueryRow(query, columnCode).Scan(
		&question.ID,
		&question.Dimension,
		&question.ColumnCode,
		&question.Text,
		&question.Description,
		&question.SortOrder,
	)

	if err == sql.ErrNoRows {
		return nil, ErrQuestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	return question, nil
}

// GetAnswerLevels retrieves the answer levels of one question
func (r *QuestionRepository) GetAnswerLevels(questionID uint) ([]models.AnswerLevel, error) {
	query := `
		SELECT id, question_id, level_id, score, description
		FROM answer_levels
		WHERE question_id = $1
		ORDER BY level_id
	`

	rows, err := r.db.Query(query, questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get answer levels: %w", err)
	}
	defer rows.Close()

	var levels []models.AnswerLevel
	for rows.Next() {
		var level models.AnswerLevel
		if err := rows.Scan(&level.ID, &level.QuestionID, &level.LevelID, &level.Score, &level.Description); err != nil {
			return nil, fmt.Errorf("failed to scan answer level: %w", err)
		}
		levels = append(levels, level)
	}

	return levels, nil
}

// GetAllWithLevels retrieves the full catalog: every question with its answer
// levels, both in catalog order
func (r *QuestionRepository) GetAllWithLevels() ([]models.QuestionWithLevels, error) {
	questions, err := r.GetAll()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT al.id, al.question_id, al.level_id, al.score, al.description
		FROM answer_levels al
		INNER JOIN questions q ON al.question_id = q.id
		ORDER BY q.sort_order, al.level_id
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get answer levels: %w", err)
	}
	defer rows.Close()

	levelsByQuestion := make(map[uint][]models.AnswerLevel)
	for rows.Next() {
		var level models.AnswerLevel
		if err := rows.Scan(&level.ID, &level.QuestionID, &level.LevelID, &level.Score, &level.Description); err != nil {
			return nil, fmt.Errorf("failed to scan answer level: %w", err)
		}
		levelsByQuestion[level.QuestionID] = append(levelsByQuestion[level.QuestionID], level)
	}

	result := make([]models.QuestionWithLevels, 0, len(questions))
	for _, question := range questions {
		result = append(result, models.QuestionWithLevels{
			Question:     question,
			AnswerLevels: levelsByQuestion[question.ID],
		})
	}

	return result, nil
}

// GetValidScores returns the set of selectable scores per column code.
// Score writes are validated against this map.
func (r *QuestionRepository) GetValidScores() (map[string]map[int64]bool, error) {
	query := `
		SELECT q.column_code, al.score
		FROM answer_levels al
		INNER JOIN questions q ON al.question_id = q.id
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get valid scores: %w", err)
	}
	defer rows.Close()

	valid := make(map[string]map[int64]bool)
	for rows.Next() {
		var columnCode string
		var score int64
		if err := rows.Scan(&columnCode, &score); err != nil {
			return nil, fmt.Errorf("failed to scan valid score: %w", err)
		}
		if valid[columnCode] == nil {
			valid[columnCode] = make(map[int64]bool)
		}
		valid[columnCode][score] = true
	}

	return valid, nil
}
