package config

type Config struct {
	Environment    Environment
	Log            Log
	HTTP           HTTPServer
	DatabaseURL    string `env:"DATABASE_URL"`
	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"mysql"` // mysql, sqlite
	RedisURL       string `env:"REDIS_URL"`                          // empty keeps the previous-level cache in memory
	HookSecret     string `env:"HOOK_SECRET"`

	Sync      Sync      `envPrefix:"SYNC_"`
	Worker    Worker    `envPrefix:"WORKER_"`
	Paypal    Paypal    `envPrefix:"PAYPAL_"`
	BrainTree Braintree `envPrefix:"BRAINTREE_"`
	Pagbank   Pagbank   `envPrefix:"PAGBANK_"`
}

// Sync holds the default values of the reconciliation settings.
type Sync struct {
	Enabled             bool     `env:"ENABLED" envDefault:"true"`
	MaintainLevelOnHold bool     `env:"MAINTAIN_LEVEL_ON_HOLD" envDefault:"true"`
	GracePeriodEnabled  bool     `env:"GRACE_PERIOD_ENABLED" envDefault:"false"`
	GracePeriodDays     int      `env:"GRACE_PERIOD_DAYS" envDefault:"3"`
	RetryCeiling        int      `env:"RETRY_CEILING" envDefault:"3"`
	RetryDelayDays      int      `env:"RETRY_DELAY_DAYS" envDefault:"2"`
	NotifyGateways      []string `env:"NOTIFY_GATEWAYS" envSeparator:"," envDefault:"pagbank,paypal,braintree"`
}

type Worker struct {
	PollInterval int `env:"POLL_INTERVAL_SECONDS" envDefault:"30"`
	BatchSize    int `env:"BATCH_SIZE" envDefault:"50"`
}

type Paypal struct {
	BaseApiURL   string `env:"BASE_API_URL"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
}

type Braintree struct {
	Environment string `env:"ENVIRONMENT"`
	MerchantID  string `env:"MERCHANT_ID"`
	PublicKey   string `env:"PUBLIC_KEY"`
	PrivateKey  string `env:"PRIVATE_KEY"`
}

type Pagbank struct {
	BaseApiURL string `env:"BASE_API_URL" envDefault:"https://sandbox.api.assinaturas.pagseguro.com"`
	Token      string `env:"TOKEN"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}
