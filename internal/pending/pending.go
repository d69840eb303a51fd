package pending

import "sync"

// OpenFile хранит путь к файлу, с которым процесс был запущен (аргумент командной
// строки или событие ОС "открыть файл"), пока его не заберёт слой отображения.
// Set перезаписывает занятый слот, Take возвращает путь и очищает слот атомарно.
// Пустой слот считается нормальным состоянием, а не ошибкой.
type OpenFile struct {
	mu   sync.Mutex
	path string
	set  bool
}

func NewOpenFile() *OpenFile {
	return &OpenFile{}
}

func (o *OpenFile) Set(path string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.path = path
	o.set = true
}

func (o *OpenFile) Take() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.set {
		return "", false
	}
	path := o.path
	o.path, o.set = "", false
	return path, true
}
