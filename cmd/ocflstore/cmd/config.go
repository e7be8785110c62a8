package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/goccy/go-yaml"
	"github.com/muesli/coral"
	ocfl "github.com/srerickson/ocflstore"
	"github.com/srerickson/ocflstore/backend/cloud"
	"github.com/srerickson/ocflstore/backend/local"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/azureblob"
	"gocloud.dev/blob/s3blob"
)

const (
	defaultRepoName = "default"
	fileDriver      = "file"
	s3Driver        = "s3"
	azureDriver     = "azure"
)

var configFlags = struct {
	saveConfig bool
}{}

type Config struct {
	Repos map[string]*RepoConfig `yaml:"repos"`
}

type RepoConfig struct {
	Driver   string  `yaml:"driver"` // storage driver: "file", "s3", or "azure"
	Path     string  `yaml:"path,omitempty"`
	Scheme   string  `yaml:"scheme,omitempty"` // dispersal scheme for new roots
	Bucket   *string `yaml:"bucket,omitempty"`
	Endpoint *string `yaml:"endpoint,omitempty"`
	Region   *string `yaml:"region,omitempty"`
}

// configCmd represents the config command
var configCmd = &coral.Command{
	Use:   "config",
	Short: "print configs",
	Long:  "print ocflstore configuration",
	Run:   runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().BoolVar(&configFlags.saveConfig, "save", false, "save config used in current command")
}

func runConfig(cmd *coral.Command, args []string) {
	conf, err := getConfig()
	if err != nil {
		log.Error(err, "can't load config", "file", rootFlags.cfgFile)
		return
	}
	writer := io.Writer(os.Stdout)
	if configFlags.saveConfig {
		f, err := os.OpenFile(rootFlags.cfgFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			log.Error(err, "can't open config file for writing")
			return
		}
		defer f.Close()
		writer = io.MultiWriter(os.Stdout, f)
		log.Info("saving config to file", "file", rootFlags.cfgFile)
	}
	if err := yaml.NewEncoder(writer).Encode(conf); err != nil {
		log.Error(err, "error encoding or writing config")
	}
}

func getConfig() (*Config, error) {
	var cfg *Config
	name := rootFlags.cfgFile
	f, err := os.Open(name)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed read config file %s: %w", name, err)
	}
	if errors.Is(err, os.ErrNotExist) {
		log.Info("config file not found, using default settings", "file", name)
		cfg = &Config{
			Repos: map[string]*RepoConfig{
				defaultRepoName: defaultRepo(),
			},
		}
	}
	if f != nil {
		defer f.Close()
		cfg = &Config{}
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
		log.Info("read config", "file", name)
	}
	repo := cfg.Repo(rootFlags.repoName, true)
	repo.applyRootFlags()
	return cfg, nil
}

func defaultRepo() *RepoConfig {
	return &RepoConfig{
		Driver: fileDriver,
		Path:   ".",
	}
}

func (cfg *Config) Repo(name string, create bool) *RepoConfig {
	if name == "" {
		name = defaultRepoName
	}
	repo := cfg.Repos[name]
	if repo == nil && create {
		if cfg.Repos == nil {
			cfg.Repos = map[string]*RepoConfig{}
		}
		repo = defaultRepo()
		cfg.Repos[name] = repo
	}
	return repo
}

// NewFSPath returns the backend and storage root directory for the named
// repo.
func (cfg *Config) NewFSPath(ctx context.Context, name string) (ocfl.FS, string, error) {
	repo := cfg.Repo(name, false)
	if repo == nil {
		return nil, "", fmt.Errorf("no repo named '%s' in config", name)
	}
	return repo.GetFSPath(ctx)
}

func (repo *RepoConfig) GetFSPath(ctx context.Context) (ocfl.FS, string, error) {
	var (
		fsys ocfl.FS
		path string = repo.Path
		err  error
	)
	if path == "" {
		path = "."
	}
	switch repo.Driver {
	case fileDriver:
		// repo.Path becomes the backend's base, so the root dir is "."
		path = "."
		fsys, err = repo.NewLocalFS()
	case s3Driver:
		fsys, err = repo.NewS3FS(ctx) // fsys needs to be closed!
	case azureDriver:
		fsys, err = repo.NewAzureFS(ctx) // fsys needs to be closed!
	default:
		return nil, "", fmt.Errorf("invalid storage driver: '%s'", repo.Driver)
	}
	if err != nil {
		return nil, "", fmt.Errorf("in '%s' storage driver: %w", repo.Driver, err)
	}
	return fsys, path, nil
}

func (repo *RepoConfig) NewS3FS(ctx context.Context) (*cloud.FS, error) {
	if repo.Bucket == nil {
		return nil, errors.New("'bucket' config is required")
	}
	bucketName := *repo.Bucket
	awsCfg := aws.Config{
		Region:   repo.Region,
		Endpoint: repo.Endpoint,
	}
	sess, err := session.NewSession(&awsCfg)
	if err != nil {
		return nil, err
	}
	bucket, err := s3blob.OpenBucket(ctx, sess, bucketName, nil)
	if err != nil {
		return nil, err
	}
	log.Info("storage backend settings", "driver", s3Driver, "bucket", bucketName)
	return cloud.NewFS(bucket, cloud.WithLogger(log)), nil
}

func (repo *RepoConfig) NewAzureFS(ctx context.Context) (*cloud.FS, error) {
	if repo.Bucket == nil {
		return nil, errors.New("'bucket' config is required")
	}
	bucketName := *repo.Bucket
	bucket, err := blob.OpenBucket(ctx, "azblob://"+bucketName)
	if err != nil {
		return nil, err
	}
	log.Info("storage backend settings", "driver", azureDriver, "container", bucketName)
	return cloud.NewFS(bucket, cloud.WithLogger(log)), nil
}

func (repo *RepoConfig) NewLocalFS() (*local.FS, error) {
	root := repo.Path
	if root == "" {
		root = "."
	}
	root = filepath.Clean(root)
	if !filepath.IsAbs(root) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		root = filepath.Join(wd, root)
	}
	log.Info("storage backend settings", "driver", fileDriver, "root", root)
	return local.NewFS(root)
}

func (repo *RepoConfig) applyRootFlags() {
	if rootFlags.driver != "" {
		repo.Driver = rootFlags.driver
	}
	if rootFlags.path != "" {
		repo.Path = rootFlags.path
	}
	if rootFlags.bucket != "" {
		repo.Bucket = &rootFlags.bucket
	}
}

// getStorageRoot loads the configured repo as a storage root.
func getStorageRoot(ctx context.Context) (*ocfl.StorageRoot, func(), error) {
	conf, err := getConfig()
	if err != nil {
		return nil, nil, err
	}
	fsys, dir, err := conf.NewFSPath(ctx, rootFlags.repoName)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if closer, ok := fsys.(io.Closer); ok {
			closer.Close()
		}
	}
	repo := conf.Repo(rootFlags.repoName, true)
	opts := []ocfl.RootOption{ocfl.RootWithLogger(log)}
	if repo.Scheme != "" {
		opts = append(opts, ocfl.RootWithScheme(repo.Scheme))
	}
	root, err := ocfl.NewStorageRoot(ctx, fsys, dir, opts...)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return root, closeFn, nil
}
