package redis

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

func (r repo) executePipe(ctx context.Context, pipe redis.Pipeliner) error {
	cmds, err := pipe.Exec(ctx)
	if err != nil {
		for _, cmd := range cmds {
			if err := cmd.Err(); err != nil {
				return err
			}
		}

		return err
	}

	return nil
}

func (r repo) fieldToInt64(field string) int64 {
	i, _ := strconv.ParseInt(field, 10, 64)
	return i
}
