package config

import "fmt"

type RedisConfig struct {
	Type       string
	Addresses  []string
	IsSentinel bool
	Password   RedactedString
	MasterName string
	DBIndex    int
}

const DBTypeRedis string = "redis"
const DBTypeRedisMock string = "redis-mock"

func (c RedisConfig) Validate() error {
	switch c.Type {
	case DBTypeRedis:
		if len(c.Addresses) == 0 {
			return fmt.Errorf("at least one redis address is required")
		}
	case DBTypeRedisMock:
	default:
		return fmt.Errorf("unrecognized redis type %q", c.Type)
	}
	return nil
}
