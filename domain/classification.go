package domain

// ContentFeatures is the output of the content analysis port. Audio
// descriptors are normalized to [0,1] except Tempo (BPM).
type ContentFeatures struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Tags         []string `json:"tags"`
	Tempo        float64  `json:"tempo"`
	Energy       float64  `json:"energy"`
	Danceability float64  `json:"danceability"`
	Acousticness float64  `json:"acousticness"`
	Valence      float64  `json:"valence"`
	Speechiness  float64  `json:"speechiness"`
}

type Classification struct {
	Genre         string  `json:"genre"`
	Subgenre      string  `json:"subgenre"`
	Confidence    float64 `json:"confidence"`
	LowConfidence bool    `json:"low_confidence"`
}

// Empty reports whether there is neither text nor audio to classify.
func (f ContentFeatures) Empty() bool {
	return f.Title == "" && f.Description == "" && len(f.Tags) == 0 &&
		f.Tempo == 0 && f.Energy == 0 && f.Danceability == 0 &&
		f.Acousticness == 0 && f.Valence == 0 && f.Speechiness == 0
}
