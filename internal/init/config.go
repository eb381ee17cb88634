package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// App mode & server
	Mode        string
	ServerAddr  string
	TLSCertFile string
	TLSKeyFile  string
	LogLevel    string

	// Auth
	JWTSecret string
	JWTTTL    time.Duration

	// Journal (Kafka + Cassandra); off means the registry lives only in memory
	JournalEnabled bool

	// Kafka
	KafkaBroker    string
	KafkaTopic     string
	KafkaGroupID   string
	KafkaPartition int
	KafkaReadTO    time.Duration
	KafkaWriteTO   time.Duration

	// Cassandra
	CassandraHost     string
	CassandraKeyspace string
	CassandraUsername string
	CassandraPassword string
	CassandraTimeout  time.Duration
	CassandraDC       string

	// Worker
	WorkerCount     int
	WorkerQueueSize int
}

var cfg *Config

// Init loads the config using Viper and returns it
func Init() *Config {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	// Load env variables
	v.AutomaticEnv()

	// Optional config file support
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig() // ignore error if no file

	cfg = fromViper(v)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("MODE", "server")
	v.SetDefault("SERVER_ADDR", ":8080")
	v.SetDefault("TLS_CERT_FILE", "")
	v.SetDefault("TLS_KEY_FILE", "")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_TTL", "24h")

	v.SetDefault("JOURNAL_ENABLED", false)

	v.SetDefault("KAFKA_BROKER", "localhost:29092")
	v.SetDefault("KAFKA_TOPIC", "openchat-events")
	v.SetDefault("KAFKA_GROUP_ID", "journal-writers")
	v.SetDefault("KAFKA_PARTITION", 0)
	v.SetDefault("KAFKA_READ_TIMEOUT", "10s")
	v.SetDefault("KAFKA_WRITE_TIMEOUT", "10s")

	v.SetDefault("CASSANDRA_HOST", "localhost")
	v.SetDefault("CASSANDRA_KEYSPACE", "openchat")
	v.SetDefault("CASSANDRA_TIMEOUT", "10s")
	// Optional: Cassandra username/password/DC can be empty

	v.SetDefault("WORKER_COUNT", 0)
	v.SetDefault("WORKER_QUEUE_SIZE", 0)
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Mode:              v.GetString("MODE"),
		ServerAddr:        v.GetString("SERVER_ADDR"),
		TLSCertFile:       v.GetString("TLS_CERT_FILE"),
		TLSKeyFile:        v.GetString("TLS_KEY_FILE"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		JWTTTL:            parseDuration(v.GetString("JWT_TTL"), 24*time.Hour),
		JournalEnabled:    v.GetBool("JOURNAL_ENABLED"),
		KafkaBroker:       v.GetString("KAFKA_BROKER"),
		KafkaTopic:        v.GetString("KAFKA_TOPIC"),
		KafkaGroupID:      v.GetString("KAFKA_GROUP_ID"),
		KafkaPartition:    v.GetInt("KAFKA_PARTITION"),
		KafkaReadTO:       parseDuration(v.GetString("KAFKA_READ_TIMEOUT"), 10*time.Second),
		KafkaWriteTO:      parseDuration(v.GetString("KAFKA_WRITE_TIMEOUT"), 10*time.Second),
		CassandraHost:     v.GetString("CASSANDRA_HOST"),
		CassandraKeyspace: v.GetString("CASSANDRA_KEYSPACE"),
		CassandraUsername: v.GetString("CASSANDRA_USERNAME"),
		CassandraPassword: v.GetString("CASSANDRA_PASSWORD"),
		CassandraTimeout:  parseDuration(v.GetString("CASSANDRA_TIMEOUT"), 10*time.Second),
		CassandraDC:       v.GetString("CASSANDRA_DC"),
		WorkerCount:       v.GetInt("WORKER_COUNT"),
		WorkerQueueSize:   v.GetInt("WORKER_QUEUE_SIZE"),
	}
}

func parseDuration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

// Get returns the loaded config instance
func Get() *Config {
	return cfg
}
