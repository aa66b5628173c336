package cfg

type Cfg struct {
	// Reddit configuration
	Subreddit    string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string

	// Application configuration
	PollInterval    int
	BackoffInterval int
	CacheFile       string
	DBPath          string
	Port            string
	APIAccessKey    string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
