package entity

// LeaderboardEntry 排行榜条目，每次读取时计算
type LeaderboardEntry struct {
	Model         string  `json:"model"`
	AverageRating float64 `json:"average_rating"`
	RatingCount   int64   `json:"rating_count"`
	Generations   int64   `json:"generations"`
	RPM           int     `json:"rpm"`
	TPM           int     `json:"tpm"`
	RPD           int     `json:"rpd"`
	Available     bool    `json:"available"`
}
