package model

import "time"

// MatchResult records one finished arena match.
type MatchResult struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ArenaID    string    `gorm:"index:idx_match_arena;size:36;not null" json:"arena_id"`
	WinnerTree string    `gorm:"index:idx_match_winner;size:64" json:"winner_tree"`
	LoserTree  string    `gorm:"size:64" json:"loser_tree"`
	Draw       bool      `json:"draw"`
	Ticks      int64     `json:"ticks"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (MatchResult) TableName() string { return "match_results" }
