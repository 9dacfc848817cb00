package config

type Site struct {
	Name    string
	BaseURL string
}

var GameMale = Site{
	Name:    "GameMale",
	BaseURL: "https://www.gamemale.com",
}

// Site returns the forum the bot talks to, honouring a GAMEMALE_BASE_URL
// override.
func (c Config) Site() Site {
	site := GameMale
	if c.BaseURL != "" {
		site.BaseURL = c.BaseURL
	}
	return site
}
