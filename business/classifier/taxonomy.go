package classifier

// audioProfile is a prototype point in the normalized audio feature space.
type audioProfile struct {
	Tempo        float64 // BPM
	Energy       float64
	Danceability float64
	Acousticness float64
	Valence      float64
	Speechiness  float64
}

type subgenre struct {
	Name     string
	Keywords []string
	Profile  audioProfile
}

type genre struct {
	Name      string
	Subgenres []subgenre
}

// defaultTaxonomy is the built-in label set. Keywords are matched against
// lowercased title, description and tag tokens.
var defaultTaxonomy = []genre{
	{
		Name: "electronic",
		Subgenres: []subgenre{
			{Name: "house", Keywords: []string{"house", "deep", "club", "dj", "edm", "groove"},
				Profile: audioProfile{Tempo: 124, Energy: 0.8, Danceability: 0.85, Acousticness: 0.05, Valence: 0.6, Speechiness: 0.05}},
			{Name: "techno", Keywords: []string{"techno", "warehouse", "industrial", "rave", "berlin"},
				Profile: audioProfile{Tempo: 132, Energy: 0.9, Danceability: 0.75, Acousticness: 0.02, Valence: 0.3, Speechiness: 0.04}},
			{Name: "ambient", Keywords: []string{"ambient", "chill", "downtempo", "lofi", "relax"},
				Profile: audioProfile{Tempo: 85, Energy: 0.25, Danceability: 0.35, Acousticness: 0.5, Valence: 0.35, Speechiness: 0.03}},
		},
	},
	{
		Name: "hip-hop",
		Subgenres: []subgenre{
			{Name: "trap", Keywords: []string{"trap", "808", "drill", "plugg"},
				Profile: audioProfile{Tempo: 140, Energy: 0.7, Danceability: 0.75, Acousticness: 0.1, Valence: 0.4, Speechiness: 0.3}},
			{Name: "boom-bap", Keywords: []string{"boombap", "boom", "bap", "rap", "cypher", "freestyle", "hiphop"},
				Profile: audioProfile{Tempo: 90, Energy: 0.65, Danceability: 0.8, Acousticness: 0.15, Valence: 0.55, Speechiness: 0.35}},
		},
	},
	{
		Name: "rock",
		Subgenres: []subgenre{
			{Name: "indie", Keywords: []string{"indie", "alternative", "garage", "shoegaze"},
				Profile: audioProfile{Tempo: 120, Energy: 0.65, Danceability: 0.5, Acousticness: 0.2, Valence: 0.5, Speechiness: 0.04}},
			{Name: "metal", Keywords: []string{"metal", "heavy", "thrash", "doom", "riff"},
				Profile: audioProfile{Tempo: 150, Energy: 0.95, Danceability: 0.35, Acousticness: 0.01, Valence: 0.25, Speechiness: 0.07}},
		},
	},
	{
		Name: "pop",
		Subgenres: []subgenre{
			{Name: "dance-pop", Keywords: []string{"pop", "dance", "hit", "radio", "summer"},
				Profile: audioProfile{Tempo: 118, Energy: 0.75, Danceability: 0.8, Acousticness: 0.1, Valence: 0.75, Speechiness: 0.06}},
			{Name: "ballad", Keywords: []string{"ballad", "love", "piano", "heartbreak"},
				Profile: audioProfile{Tempo: 72, Energy: 0.35, Danceability: 0.4, Acousticness: 0.6, Valence: 0.3, Speechiness: 0.04}},
		},
	},
	{
		Name: "latin",
		Subgenres: []subgenre{
			{Name: "reggaeton", Keywords: []string{"reggaeton", "perreo", "dembow", "urbano"},
				Profile: audioProfile{Tempo: 95, Energy: 0.75, Danceability: 0.85, Acousticness: 0.1, Valence: 0.7, Speechiness: 0.12}},
			{Name: "flamenco", Keywords: []string{"flamenco", "rumba", "guitarra", "cante"},
				Profile: audioProfile{Tempo: 110, Energy: 0.55, Danceability: 0.55, Acousticness: 0.75, Valence: 0.55, Speechiness: 0.06}},
		},
	},
}
