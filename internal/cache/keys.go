package cache

import "fmt"

const keyPrefix = "sp2yt:failed:"

func FailedKey(trackKey string) string {
	return fmt.Sprintf("%s%s", keyPrefix, trackKey)
}
