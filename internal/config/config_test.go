package config

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	var (
		tempDir    string
		configFile string
	)

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "config-test")
		Expect(err).NotTo(HaveOccurred())
		configFile = filepath.Join(tempDir, "config.yaml")
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
	})

	Describe("Load", func() {
		Context("when config file exists with valid content", func() {
			BeforeEach(func() {
				validConfig := `
server:
  metrics_port: "9090"
  health_port: "8081"

daemons:
  polling_interval: "30s"
  worker_pool_size: 8
  cancellation_backoff: "10s"
  cancellation_timeout: "1m"

logging:
  level: "debug"
  format: "console"
`
				err := os.WriteFile(configFile, []byte(validConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should load configuration successfully", func() {
				config, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())
				Expect(config).NotTo(BeNil())

				Expect(config.Server.MetricsPort).To(Equal("9090"))
				Expect(config.Server.HealthPort).To(Equal("8081"))

				Expect(config.Daemons.PollingInterval).To(Equal(30 * time.Second))
				Expect(config.Daemons.WorkerPoolSize).To(Equal(8))
				Expect(config.Daemons.CancellationBackoff).To(Equal(10 * time.Second))
				Expect(config.Daemons.CancellationTimeout).To(Equal(time.Minute))

				Expect(config.Logging.Level).To(Equal("debug"))
				Expect(config.Logging.Format).To(Equal("console"))
			})
		})

		Context("when config file has minimal content", func() {
			BeforeEach(func() {
				minimalConfig := `
server:
  metrics_port: "3000"
`
				err := os.WriteFile(configFile, []byte(minimalConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should load with defaults for missing values", func() {
				config, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())

				Expect(config.Server.MetricsPort).To(Equal("3000"))
				Expect(config.Daemons.PollingInterval).To(Equal(defaultPollingInterval))
				Expect(config.Daemons.WorkerPoolSize).To(Equal(defaultWorkerPoolSize))
				Expect(config.Logging.Level).To(Equal(defaultLogLevel))
			})
		})

		Context("when config file does not exist", func() {
			It("should return an error", func() {
				_, err := Load("/nonexistent/config.yaml")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to read config file"))
			})
		})

		Context("when config file has invalid YAML", func() {
			BeforeEach(func() {
				invalidConfig := `
server:
  metrics_port: "8080"
  invalid_yaml: [
daemons:
  worker_pool_size: 8
`
				err := os.WriteFile(configFile, []byte(invalidConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return an error", func() {
				_, err := Load(configFile)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to parse config file"))
			})
		})

		Context("when config has invalid duration formats", func() {
			BeforeEach(func() {
				invalidDurationConfig := `
daemons:
  polling_interval: "not-a-duration"
`
				err := os.WriteFile(configFile, []byte(invalidDurationConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return an error", func() {
				_, err := Load(configFile)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to parse config file"))
			})
		})
	})

	Describe("validate", func() {
		var config *Config

		BeforeEach(func() {
			config = &Config{
				Server: ServerConfig{
					MetricsPort: "9090",
					HealthPort:  "8081",
				},
				Daemons: DaemonsConfig{
					PollingInterval:     30 * time.Second,
					WorkerPoolSize:      8,
					CancellationBackoff: 10 * time.Second,
					CancellationTimeout: time.Minute,
				},
				Logging: LoggingConfig{
					Level:  "info",
					Format: "json",
				},
			}
		})

		Context("when config is valid", func() {
			It("should pass validation", func() {
				err := validate(config)
				Expect(err).NotTo(HaveOccurred())
			})
		})

		Context("when polling interval is zero", func() {
			BeforeEach(func() {
				config.Daemons.PollingInterval = 0
			})

			It("should set the default", func() {
				err := validate(config)
				Expect(err).NotTo(HaveOccurred())
				Expect(config.Daemons.PollingInterval).To(Equal(defaultPollingInterval))
			})
		})

		Context("when polling interval is negative", func() {
			BeforeEach(func() {
				config.Daemons.PollingInterval = -time.Second
			})

			It("should return a validation error", func() {
				err := validate(config)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("polling_interval must not be negative"))
			})
		})

		Context("when worker pool size is negative", func() {
			BeforeEach(func() {
				config.Daemons.WorkerPoolSize = -1
			})

			It("should return a validation error", func() {
				err := validate(config)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("worker_pool_size must be greater than 0"))
			})
		})

		Context("when log level is unsupported", func() {
			BeforeEach(func() {
				config.Logging.Level = "verbose"
			})

			It("should return a validation error", func() {
				err := validate(config)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("unsupported log level"))
			})
		})

		Context("when log format is unsupported", func() {
			BeforeEach(func() {
				config.Logging.Format = "xml"
			})

			It("should return a validation error", func() {
				err := validate(config)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("unsupported log format"))
			})
		})
	})

	Describe("loadFromEnv", func() {
		var config *Config

		BeforeEach(func() {
			config = &Config{}
			os.Clearenv()
		})

		Context("when environment variables are set", func() {
			BeforeEach(func() {
				os.Setenv("METRICS_PORT", "3000")
				os.Setenv("HEALTH_PORT", "9999")
				os.Setenv("LOG_LEVEL", "debug")
				os.Setenv("DAEMON_POLLING_INTERVAL", "15s")
				os.Setenv("DAEMON_WORKER_POOL_SIZE", "4")
			})

			AfterEach(func() {
				os.Clearenv()
			})

			It("should load values from environment", func() {
				err := loadFromEnv(config)
				Expect(err).NotTo(HaveOccurred())

				Expect(config.Server.MetricsPort).To(Equal("3000"))
				Expect(config.Server.HealthPort).To(Equal("9999"))
				Expect(config.Logging.Level).To(Equal("debug"))
				Expect(config.Daemons.PollingInterval).To(Equal(15 * time.Second))
				Expect(config.Daemons.WorkerPoolSize).To(Equal(4))
			})
		})

		Context("when an invalid duration is set", func() {
			BeforeEach(func() {
				os.Setenv("DAEMON_POLLING_INTERVAL", "not-a-duration")
			})

			AfterEach(func() {
				os.Clearenv()
			})

			It("should return an error", func() {
				err := loadFromEnv(config)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("invalid DAEMON_POLLING_INTERVAL"))
			})
		})

		Context("when no environment variables are set", func() {
			It("should not modify config", func() {
				originalConfig := *config
				err := loadFromEnv(config)
				Expect(err).NotTo(HaveOccurred())
				Expect(*config).To(Equal(originalConfig))
			})
		})
	})
})
