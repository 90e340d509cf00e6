package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host               string
		Port               string
		DebugHost          string
		BaseURL            string
		ReadTimeout        time.Duration
		WriteTimeout       time.Duration
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
		InvoiceInterval    time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		MaxOpenConns  int
		MaxIdleConns  int
	}

	EmailConfig struct {
		SendgridApiKey string
		TemplateID     string
		From           string
	}

	YocoConfig struct {
		SecretKey string
		URL       string
	}

	StorageConfig struct {
		Bucket       string
		Region       string
		Endpoint     string
		UsePathStyle bool
		PublicURL    string
		AccessKeyID  string
		SecretKey    string
	}

	RatesConfig struct {
		ApiKey string
		URL    string
	}

	Config struct {
		AppName                   string
		Build                     string
		Env                       string
		Debug                     bool
		TestMode                  bool
		WorkDir                   string
		SecretKey                 string
		FrontendBaseURL           string
		RollbarToken              string
		PasswordResetTimeoutDelta time.Duration
		HTTPClientTimeout         time.Duration

		Server   ServerConfig
		Database DatabaseConfig
		Email    EmailConfig
		Yoco     YocoConfig
		Storage  StorageConfig
		Rates    RatesConfig
	}
)

// Address returns the "host:port" of the database server.
func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// Address returns the "host:port" the API listens on.
func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// DefaultFromEmail parses the configured sender, falling back to the raw string as address.
func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.Email.From)
	if err != nil {
		return mail.Address{Address: c.Email.From}
	}
	return *addr
}

func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Askante")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("frontendBaseURL", "https://askante.net")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("httpClientTimeout", 30*time.Second)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.baseURL", "")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 30*time.Second)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 29*24*time.Hour)
	v.SetDefault("server.invoiceInterval", time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "askante")
	v.SetDefault("database.user", "askante")
	v.SetDefault("database.password", "askante")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)

	v.SetDefault("email.sendgridApiKey", "")
	v.SetDefault("email.templateID", "d-7ab3828519fd42259a4369de79f9d832")
	v.SetDefault("email.from", "Askante<no-reply@askante.net>")

	v.SetDefault("yoco.secretKey", "")
	v.SetDefault("yoco.url", "https://online.yoco.com/v1/charges/")

	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.usePathStyle", false)
	v.SetDefault("storage.publicURL", "")
	v.SetDefault("storage.accessKeyID", "")
	v.SetDefault("storage.secretKey", "")

	v.SetDefault("rates.apiKey", "")
	v.SetDefault("rates.url", "https://v6.exchangerate-api.com/v6")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
		v.SetDefault("database.name", "askante_test")
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		AppName:                   v.GetString("appName"),
		Build:                     v.GetString("build"),
		Env:                       env,
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		WorkDir:                   wd,
		SecretKey:                 v.GetString("secretKey"),
		FrontendBaseURL:           strings.TrimSuffix(v.GetString("frontendBaseURL"), "/"),
		RollbarToken:              v.GetString("rollbarToken"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		HTTPClientTimeout:         v.GetDuration("httpClientTimeout"),
		Server: ServerConfig{
			Host:               v.GetString("server.host"),
			Port:               v.GetString("server.port"),
			DebugHost:          v.GetString("server.debugHost"),
			BaseURL:            strings.TrimSuffix(v.GetString("server.baseURL"), "/"),
			ReadTimeout:        v.GetDuration("server.readTimeout"),
			WriteTimeout:       v.GetDuration("server.writeTimeout"),
			ShutdownTimeout:    v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
			InvoiceInterval:    v.GetDuration("server.invoiceInterval"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
			MaxOpenConns:  v.GetInt("database.maxOpenConns"),
			MaxIdleConns:  v.GetInt("database.maxIdleConns"),
		},
		Email: EmailConfig{
			SendgridApiKey: v.GetString("email.sendgridApiKey"),
			TemplateID:     v.GetString("email.templateID"),
			From:           v.GetString("email.from"),
		},
		Yoco: YocoConfig{
			SecretKey: v.GetString("yoco.secretKey"),
			URL:       v.GetString("yoco.url"),
		},
		Storage: StorageConfig{
			Bucket:       v.GetString("storage.bucket"),
			Region:       v.GetString("storage.region"),
			Endpoint:     v.GetString("storage.endpoint"),
			UsePathStyle: v.GetBool("storage.usePathStyle"),
			PublicURL:    strings.TrimSuffix(v.GetString("storage.publicURL"), "/"),
			AccessKeyID:  v.GetString("storage.accessKeyID"),
			SecretKey:    v.GetString("storage.secretKey"),
		},
		Rates: RatesConfig{
			ApiKey: v.GetString("rates.apiKey"),
			URL:    strings.TrimSuffix(v.GetString("rates.url"), "/"),
		},
	}
	if conf.Server.BaseURL == "" {
		conf.Server.BaseURL = fmt.Sprintf("http://localhost:%s", conf.Server.Port)
	}
	return conf
}
