package temporalx

import (
	"strings"
	"time"

	"github.com/dpnam2112/codemate-backend/internal/platform/envutil"
)

type Config struct {
	Address   string
	Namespace string
	TaskQueue string

	ClientCertPath string
	ClientKeyPath  string
	ClientCAPath   string

	DialTimeout time.Duration
	DialMaxWait time.Duration

	WorkerConcurrency int
	WorkerStartWait   time.Duration
}

func LoadConfig() Config {
	return Config{
		Address:   envutil.String("TEMPORAL_ADDRESS", ""),
		Namespace: envutil.String("TEMPORAL_NAMESPACE", "codemate"),
		TaskQueue: envutil.String("TEMPORAL_TASK_QUEUE", "codemate-ingest"),

		ClientCertPath: envutil.String("TEMPORAL_CLIENT_CERT_PATH", ""),
		ClientKeyPath:  envutil.String("TEMPORAL_CLIENT_KEY_PATH", ""),
		ClientCAPath:   envutil.String("TEMPORAL_CLIENT_CA_PATH", ""),

		DialTimeout: envutil.Seconds("TEMPORAL_DIAL_TIMEOUT_SECONDS", 5*time.Second),
		DialMaxWait: envutil.Seconds("TEMPORAL_DIAL_MAX_WAIT_SECONDS", 60*time.Second),

		WorkerConcurrency: envutil.PositiveInt("TEMPORAL_WORKER_CONCURRENCY", 4),
		WorkerStartWait:   envutil.Seconds("TEMPORAL_WORKER_START_MAX_WAIT_SECONDS", 60*time.Second),
	}
}

func (c Config) Enabled() bool { return strings.TrimSpace(c.Address) != "" }
