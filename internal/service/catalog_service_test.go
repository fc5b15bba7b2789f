package service

import (
	"testing"

	"ikk-backend/internal/models"
)

func TestSortAnswerLevelsAscending(t *testing.T) {
	levels := []models.AnswerLevel{
		{ID: 3, LevelID: 4, Score: 30},
		{ID: 1, LevelID: 1, Score: 0},
		{ID: 4, LevelID: 2, Score: 10},
		{ID: 2, LevelID: 3, Score: 20},
	}

	sortAnswerLevels(levels)

	for i, want := range []int{1, 2, 3, 4} {
		if levels[i].LevelID != want {
			t.Errorf("position %d: level ID = %d, want %d", i, levels[i].LevelID, want)
		}
	}
}

func TestSortAnswerLevelsEmpty(t *testing.T) {
	// Must not panic on empty or single-element input
	sortAnswerLevels(nil)
	sortAnswerLevels([]models.AnswerLevel{{LevelID: 1}})
}
