package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("HAZO_TEST_MODE") == "" {
			_ = os.Setenv("HAZO_TEST_MODE", "1")
		}
	})
}
