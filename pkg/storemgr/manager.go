package storemgr

import (
	"io"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/joho/godotenv"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/serverlessresearch/s3store/pkg/metrics"
	"github.com/serverlessresearch/s3store/pkg/s3store"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type StoreManager struct {
	Store    *s3store.Store
	Logger   logrus.FieldLogger
	Cfg      *viper.Viper
	Registry *prometheus.Registry
}

// NewManager reads the configuration and builds a ready Store. Recognized
// options are "config-file" (string), "logger" (logrus.FieldLogger) and
// "client" (s3store.Client, replaces the AWS session).
func NewManager(userCfg map[string]interface{}) (*StoreManager, error) {
	var err error
	mgr := &StoreManager{}

	if cfgPathRaw, ok := userCfg["config-file"]; ok {
		if cfgPath, ok := cfgPathRaw.(string); ok {
			err = mgr.initConfig(&cfgPath)
		} else {
			return nil, errors.New("option 'config-file' must be of type string")
		}
	} else {
		err = mgr.initConfig(nil)
	}
	if err != nil {
		return nil, err
	}

	if loggerRaw, ok := userCfg["logger"]; ok {
		if logger, ok := loggerRaw.(logrus.FieldLogger); ok {
			mgr.Logger = logger
		} else {
			return nil, errors.New("option 'logger' must satisfy logrus.FieldLogger")
		}
	} else {
		logger := logrus.New()
		level, err := logrus.ParseLevel(mgr.Cfg.GetString("log-level"))
		if err != nil {
			return nil, errors.Wrap(err, "Invalid log-level")
		}
		logger.SetLevel(level)
		mgr.Logger = logger
	}

	var client s3store.Client
	if clientRaw, ok := userCfg["client"]; ok {
		if client, ok = clientRaw.(s3store.Client); !ok {
			return nil, errors.New("option 'client' must satisfy s3store.Client")
		}
	} else {
		client, err = mgr.newClient()
		if err != nil {
			return nil, err
		}
	}

	if err = mgr.initStore(client); err != nil {
		return nil, err
	}
	return mgr, nil
}

func (self *StoreManager) initConfig(cfgPath *string) error {
	// This is a private viper context (so as not to conflict with the
	// importer's usage).
	self.Cfg = viper.New()

	// Values from a local .env become ordinary environment variables.
	_ = godotenv.Load()

	// Order of precedence: ENV, s3store.yaml, default
	self.Cfg.SetDefault("region", "us-east-1")
	self.Cfg.BindEnv("region", "AWS_DEFAULT_REGION", "AWS_REGION")
	self.Cfg.BindEnv("access-key-id", "AWS_ACCESS_KEY_ID")
	self.Cfg.BindEnv("secret-access-key", "AWS_SECRET_ACCESS_KEY")
	self.Cfg.BindEnv("endpoint", "S3STORE_ENDPOINT")
	self.Cfg.BindEnv("bucket", "S3STORE_BUCKET")

	self.Cfg.SetDefault("force-path-style", false)
	self.Cfg.SetDefault("multipart.part-size", s3store.DefaultPartSize)
	self.Cfg.SetDefault("list.page-size", 1000)
	self.Cfg.SetDefault("log-level", "info")

	if cfgPath != nil {
		path, err := homedir.Expand(*cfgPath)
		if err != nil {
			return errors.Wrap(err, "Failed to resolve config path "+*cfgPath)
		}
		self.Cfg.SetConfigFile(path)
		if err := self.Cfg.ReadInConfig(); err != nil {
			return errors.Wrap(err, "Failed to load config")
		}
		return nil
	}

	// default search path for config is ./configs/s3store.* then
	// ~/.s3store/s3store.* (* can be json, yaml, etc)
	self.Cfg.AddConfigPath("./configs")
	if home, err := homedir.Dir(); err == nil {
		self.Cfg.AddConfigPath(filepath.Join(home, ".s3store"))
	}
	self.Cfg.SetConfigName("s3store")
	if err := self.Cfg.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return errors.Wrap(err, "Failed to load config")
		}
	}
	return nil
}

func (self *StoreManager) newClient() (s3store.Client, error) {
	awsCfg := &aws.Config{
		Region:           aws.String(self.Cfg.GetString("region")),
		S3ForcePathStyle: aws.Bool(self.Cfg.GetBool("force-path-style")),
	}
	if endpoint := self.Cfg.GetString("endpoint"); endpoint != "" {
		awsCfg.Endpoint = aws.String(endpoint)
	}
	keyID := self.Cfg.GetString("access-key-id")
	secret := self.Cfg.GetString("secret-access-key")
	if keyID != "" && secret != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(keyID, secret, "")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create AWS session")
	}
	return s3.New(sess), nil
}

func (self *StoreManager) initStore(client s3store.Client) error {
	bucket := self.Cfg.GetString("bucket")
	if bucket == "" {
		return errors.New("No bucket in configuration")
	}
	partSize := self.Cfg.GetInt("multipart.part-size")
	if partSize < s3store.MinPartSize {
		return errors.Errorf("multipart.part-size must be at least %d bytes", s3store.MinPartSize)
	}

	self.Registry = prometheus.NewRegistry()
	self.Store = s3store.New(client, bucket,
		s3store.WithLogger(self.Logger),
		s3store.WithObserver(metrics.NewStorageMetrics(self.Registry)),
		s3store.WithPartSize(partSize),
		s3store.WithListPageSize(self.Cfg.GetInt64("list.page-size")))
	return nil
}

// WriteMetrics encodes every gathered family in the Prometheus text format.
func (self *StoreManager) WriteMetrics(w io.Writer) error {
	families, err := self.Registry.Gather()
	if err != nil {
		return errors.Wrap(err, "Failed to gather metrics")
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, f := range families {
		if err := enc.Encode(f); err != nil {
			return errors.Wrap(err, "Failed to encode metrics")
		}
	}
	return nil
}
