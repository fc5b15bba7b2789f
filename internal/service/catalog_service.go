package service

import (
	"sort"

	"ikk-backend/internal/models"
	"ikk-backend/internal/repository"
)

// CatalogService serves the questionnaire catalog: the fixed questions of
// the four dimensions with their selectable answer levels
type CatalogService struct {
	questionRepo *repository.QuestionRepository
}

// NewCatalogService creates a new catalog service
func NewCatalogService(questionRepo *repository.QuestionRepository) *CatalogService {
	return &CatalogService{questionRepo: questionRepo}
}

// GetQuestionnaire returns the full catalog grouped as the client renders it:
// questions in catalog order, each with its answer levels sorted ascending
func (s *CatalogService) GetQuestionnaire() ([]models.QuestionWithLevels, error) {
	questions, err := s.questionRepo.GetAllWithLevels()
	if err != nil {
		return nil, err
	}

	for i := range questions {
		sortAnswerLevels(questions[i].AnswerLevels)
	}

	return questions, nil
}

// GetQuestionsByDimension returns the catalog grouped by dimension key
func (s *CatalogService) GetQuestionsByDimension() (map[models.Dimension][]models.QuestionWithLevels, error) {
	questions, err := s.GetQuestionnaire()
	if err != nil {
		return nil, err
	}

	grouped := make(map[models.Dimension][]models.QuestionWithLevels)
	for _, question := range questions {
		grouped[question.Dimension] = append(grouped[question.Dimension], question)
	}

	return grouped, nil
}

// sortAnswerLevels orders answer levels ascending by level ID so clients
// always render level 1 first regardless of storage order
func sortAnswerLevels(levels []models.AnswerLevel) {
	sort.Slice(levels, func(i, j int) bool {
		return levels[i].LevelID < levels[j].LevelID
	})
}
