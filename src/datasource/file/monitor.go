// monitor.go
package file

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"ShoppingBehavior/src/utils"
)

// datasetExts 可识别的数据集文件扩展名
var datasetExts = []string{".csv", ".xlsx"}

// FileMonitor 监控数据目录，数据集文件被重写时触发一次完整的批处理
// 不做增量消费，回调拿到的永远是整个文件
type FileMonitor struct {
	watchDir string
	watcher  *fsnotify.Watcher
	lastFile string
	lastMod  time.Time
	mu       sync.Mutex
}

func NewFileMonitor(dir string) (*FileMonitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(dir); err != nil {
		return nil, err
	}

	return &FileMonitor{
		watchDir: dir,
		watcher:  watcher,
	}, nil
}

// Watch 阻塞监听，每个新写入的数据集文件触发一次handler
func (m *FileMonitor) Watch(handler func(string)) error {
	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !isDatasetFile(event.Name) {
				continue
			}

			info, err := os.Stat(event.Name)
			if err != nil {
				continue
			}

			m.mu.Lock()
			if info.ModTime().After(m.lastMod) || event.Name != m.lastFile {
				m.lastMod = info.ModTime()
				m.lastFile = event.Name
				go handler(event.Name)
			}
			m.mu.Unlock()
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func (m *FileMonitor) Close() error {
	return m.watcher.Close()
}

func isDatasetFile(name string) bool {
	// excel打开文件时的临时副本以~$开头，不当作数据集
	if strings.HasPrefix(filepath.Base(name), "~$") {
		return false
	}
	return utils.Contains(datasetExts, strings.ToLower(filepath.Ext(name)))
}
