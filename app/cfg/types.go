package cfg

type Cfg struct {
	// Database configuration
	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string

	// Broker configuration
	AMQPURL string

	// Application configuration
	Port           string
	SourcesFile    string
	SeedFile       string
	TargetTable    string
	IDKey          string
	MaxPages       int
	ScrapeSchedule string
	Publish        string

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}
