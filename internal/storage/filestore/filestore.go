// Пакет filestore — операции с физическими файлами полки на диске.
// Обеспечивает приём байтов из внешнего файла с подсчётом SHA-256 на лету,
// удаление, проверку существования и очистку остатков предыдущего процесса.
package filestore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileStore — управление физическими файлами в приватной директории полки.
// Директория принадлежит полке эксклюзивно: никакой другой компонент
// в неё не пишет.
type FileStore struct {
	// dataDir — корневая директория хранения файлов (DS_DATA_DIR)
	dataDir string
}

// IngestResult — результат приёма файла на диск.
type IngestResult struct {
	// StoragePath — относительный путь файла в dataDir
	StoragePath string
	// FullPath — абсолютный путь файла на диске
	FullPath string
	// Size — размер записанных данных в байтах
	Size int64
	// Fingerprint — SHA-256 хэш содержимого файла
	Fingerprint string
}

// New создаёт новый FileStore. Проверяет и создаёт директорию
// если она не существует.
func New(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}

	return &FileStore{dataDir: dataDir}, nil
}

// Ingest копирует содержимое внешнего файла в приватную директорию полки
// с подсчётом SHA-256 на лету. Исходный файл не изменяется.
// Формат имени файла: {name}_{timestamp}_{uuid}.{ext}
//
// Паттерн: temp файл → запись + SHA-256 → fsync → atomic rename.
// При ошибке temp файл удаляется.
func (fs *FileStore) Ingest(sourcePath, displayName string) (*IngestResult, error) {
	src, err := os.Open(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия исходного файла %s: %w", sourcePath, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return nil, fmt.Errorf("ошибка stat исходного файла %s: %w", sourcePath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("исходный путь %s является директорией", sourcePath)
	}

	return fs.Write(src, displayName)
}

// Write записывает данные из reader на диск с подсчётом SHA-256 на лету.
// Используется приёмом файлов и конвертацией (запись результата).
func (fs *FileStore) Write(reader io.Reader, displayName string) (*IngestResult, error) {
	storageName := generateStorageName(displayName)
	fullPath := filepath.Join(fs.dataDir, storageName)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	// Streaming запись с одновременным подсчётом SHA-256
	hasher := sha256.New()
	tee := io.TeeReader(reader, hasher)

	size, err := io.Copy(f, tee)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	// Атомарный rename
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &IngestResult{
		StoragePath: storageName,
		FullPath:    fullPath,
		Size:        size,
		Fingerprint: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// FullPath возвращает абсолютный путь к файлу на диске.
func (fs *FileStore) FullPath(storagePath string) string {
	return filepath.Join(fs.dataDir, storagePath)
}

// Delete удаляет файл с диска.
// storagePath — относительный путь файла в dataDir.
// Возвращает nil если файл уже не существует.
func (fs *FileStore) Delete(storagePath string) error {
	fullPath := filepath.Join(fs.dataDir, storagePath)

	err := os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", storagePath, err)
	}
	return nil
}

// Exists проверяет существование файла на диске.
func (fs *FileStore) Exists(storagePath string) bool {
	fullPath := filepath.Join(fs.dataDir, storagePath)
	_, err := os.Stat(fullPath)
	return err == nil
}

// Size возвращает размер файла на диске.
func (fs *FileStore) Size(storagePath string) (int64, error) {
	fullPath := filepath.Join(fs.dataDir, storagePath)
	info, err := os.Stat(fullPath)
	if err != nil {
		return 0, fmt.Errorf("ошибка получения информации о файле %s: %w", storagePath, err)
	}
	return info.Size(), nil
}

// ComputeFingerprint вычисляет SHA-256 хэш существующего файла.
// Используется при валидации для обнаружения внешнего изменения байтов.
func (fs *FileStore) ComputeFingerprint(storagePath string) (string, error) {
	fullPath := filepath.Join(fs.dataDir, storagePath)

	f, err := os.Open(fullPath)
	if err != nil {
		return "", fmt.Errorf("ошибка открытия файла %s: %w", storagePath, err)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("ошибка вычисления отпечатка %s: %w", storagePath, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Purge удаляет из директории данных все файлы, оставшиеся от предыдущего
// процесса. Записи полки не переживают рестарт, поэтому всё содержимое
// директории при старте — мусор. Возвращает количество удалённых файлов.
func (fs *FileStore) Purge() (int, error) {
	entries, err := os.ReadDir(fs.dataDir)
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения директории данных %s: %w", fs.dataDir, err)
	}

	purged := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		// Служебные файлы не трогаем
		if strings.HasPrefix(name, ".") {
			continue
		}
		if err := os.Remove(filepath.Join(fs.dataDir, name)); err != nil {
			return purged, fmt.Errorf("ошибка удаления остатка %s: %w", name, err)
		}
		purged++
	}

	return purged, nil
}

// DataDir возвращает путь к директории данных.
func (fs *FileStore) DataDir() string {
	return fs.dataDir
}

// generateStorageName генерирует имя файла для хранения на диске.
// Формат: {name}_{timestamp}_{uuid}.{ext}
// Пример: screenshot_20260823150405_a1b2c3d4.png
func generateStorageName(displayName string) string {
	ext := filepath.Ext(displayName)
	name := strings.TrimSuffix(displayName, ext)

	// Убираем небезопасные символы из имени
	name = sanitize(name)

	// Ограничиваем длину имени для предотвращения проблем с FS
	if len(name) > 50 {
		name = name[:50]
	}

	ts := time.Now().UTC().Format("20060102150405")
	uid := uuid.New().String()[:8] // Короткий UUID для уникальности

	if ext != "" {
		return fmt.Sprintf("%s_%s_%s%s", name, ts, uid, ext)
	}
	return fmt.Sprintf("%s_%s_%s", name, ts, uid)
}

// sanitize убирает небезопасные символы из строки для использования в имени файла.
// Оставляет только буквы, цифры, дефис и подчёркивание.
func sanitize(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' ||
			(r >= 0x0400 && r <= 0x04FF) { // Кириллица
			result.WriteRune(r)
		}
	}
	if result.Len() == 0 {
		return "file"
	}
	return result.String()
}
