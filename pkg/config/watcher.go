package config

import (
	"github.com/fsnotify/fsnotify"
)

// StartWatch 开始监控配置文件变更
// 文件被修改后重新解析并触发 onChange；解析失败保留旧配置并上报 onError
func (l *Loader) StartWatch() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.watching {
		return
	}

	l.viper.OnConfigChange(func(e fsnotify.Event) {
		l.mu.Lock()
		watching := l.watching
		settings, err := l.unmarshal()
		if err == nil {
			l.settings = settings
		}
		onChange := l.onChange
		onError := l.onError
		l.mu.Unlock()

		if !watching {
			return
		}
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		if onChange != nil {
			onChange(settings)
		}
	})
	l.viper.WatchConfig()
	l.watching = true
}

// StopWatch 停止响应配置变更
// viper 未提供停止底层 fsnotify watcher 的方法，这里仅标记状态使回调失效
func (l *Loader) StopWatch() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.watching = false
}
