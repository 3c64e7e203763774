package config

type Config struct {
	DebugMode  bool
	Server     ServerConfig
	API        APIConfig
	Sessions   SessionConfig
	Redis      RedisConfig
	Monitoring MonitoringConfig
}

func (c *Config) Validate() error {
	err := c.API.Validate()
	if err != nil {
		return err
	}
	err = c.Sessions.Validate()
	if err != nil {
		return err
	}
	err = c.Redis.Validate()
	if err != nil {
		return err
	}
	return nil
}
