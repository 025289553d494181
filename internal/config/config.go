package config

import "time"

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	Database  Database  `envPrefix:"DB_"`
	Click     Click     `envPrefix:"CLICK_"`
	Payme     Payme     `envPrefix:"PAYME_"`
	Redis     Redis     `envPrefix:"REDIS_"`
	Kafka     Kafka     `envPrefix:"KAFKA_"`
	Auth      Auth      `envPrefix:"AUTH_"`
	Reconcile Reconcile `envPrefix:"RECONCILE_"`
}

type Database struct {
	Driver       string `env:"DRIVER" envDefault:"sqlite"` // mysql, postgres, sqlite
	URL          string `env:"URL" envDefault:"brandstore.db"`
	MaxOpenConns int    `env:"MAX_OPEN_CONNS" envDefault:"50"`
	MaxIdleConns int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
}

// Click is the REST-callback gateway (prepare/complete).
type Click struct {
	MerchantID  string `env:"MERCHANT_ID"`
	ServiceID   string `env:"SERVICE_ID"`
	SecretKey   string `env:"SECRET_KEY"`
	CheckoutURL string `env:"CHECKOUT_URL" envDefault:"https://my.click.uz/services/pay"`
}

func (c Click) Configured() bool {
	return c.MerchantID != "" && c.ServiceID != "" && c.SecretKey != ""
}

// Payme is the JSON-RPC gateway.
type Payme struct {
	MerchantID  string `env:"MERCHANT_ID"`
	SecretKey   string `env:"SECRET_KEY"`
	Identity    string `env:"IDENTITY" envDefault:"Paycom"`
	CheckoutURL string `env:"CHECKOUT_URL" envDefault:"https://checkout.paycom.uz"`
}

func (p Payme) Configured() bool {
	return p.MerchantID != "" && p.SecretKey != ""
}

type Redis struct {
	Addr     string        `env:"ADDR"`
	Password string        `env:"PASSWORD"`
	DB       int           `env:"DB" envDefault:"0"`
	LockTTL  time.Duration `env:"LOCK_TTL" envDefault:"10s"`
}

type Kafka struct {
	Brokers []string `env:"BROKERS" envSeparator:","`
	Topic   string   `env:"TOPIC" envDefault:"payment.events"`
}

type Auth struct {
	JWTSecret string `env:"JWT_SECRET"`
}

type Reconcile struct {
	// tolerated overshoot of completed payments over the order total
	AmountEpsilon string `env:"AMOUNT_EPSILON" envDefault:"0"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

func (e Environment) IsDevelopment() bool {
	return e.Name == "development"
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}
