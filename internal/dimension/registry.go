package dimension

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
)

const defaultNamespace = "minecraft"

// EntitiesDir 是每个维度目录下存放实体 region 文件的子目录名。
const EntitiesDir = "entities"

// Layout 描述一个维度在存档中的目录布局。
type Layout struct {
	// Key 是带命名空间的维度键，例如 minecraft:the_nether。
	Key string
	// Dir 是维度根目录（相对存档根，斜杠分隔），主世界为空。
	Dir         string
	Description string
}

var globalRegistry = newRegistry()

type registry struct {
	mu      sync.RWMutex
	layouts map[string]Layout
}

func newRegistry() *registry {
	return &registry{layouts: make(map[string]Layout)}
}

// Register 将维度布局加入全局注册表，重复键会返回错误。
func Register(layout Layout) error {
	return globalRegistry.register(layout)
}

// MustRegister 在注册失败时 panic，适合 init() 中调用。
func MustRegister(layout Layout) {
	if err := Register(layout); err != nil {
		panic(err)
	}
}

// Resolve 返回维度布局；未注册但合法的命名空间键按通用布局生成。
func Resolve(key string) (Layout, error) {
	normalized, err := NormalizeKey(key)
	if err != nil {
		return Layout{}, err
	}
	if layout, ok := globalRegistry.resolve(normalized); ok {
		return layout, nil
	}
	ns, p, _ := strings.Cut(normalized, ":")
	return Layout{
		Key:         normalized,
		Dir:         path.Join("dimensions", ns, p),
		Description: "custom dimension",
	}, nil
}

// List 返回按键排序的已注册布局。
func List() []Layout {
	return globalRegistry.list()
}

// RegionDir 返回维度实体 region 目录（相对存档根，斜杠分隔）。
func RegionDir(key string) (string, error) {
	layout, err := Resolve(key)
	if err != nil {
		return "", err
	}
	return path.Join(layout.Dir, EntitiesDir), nil
}

// ShortName 返回维度键去掉命名空间后的路径部分，用于统计与提示文本。
func ShortName(key string) string {
	normalized, err := NormalizeKey(key)
	if err != nil {
		return key
	}
	_, p, _ := strings.Cut(normalized, ":")
	return p
}

// NormalizeKey 补全默认命名空间并校验字符集。
func NormalizeKey(key string) (string, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return "", fmt.Errorf("dimension key is required")
	}
	ns, p, found := strings.Cut(key, ":")
	if !found {
		ns, p = defaultNamespace, key
	}
	if ns == "" || p == "" {
		return "", fmt.Errorf("invalid dimension key %q", key)
	}
	for _, r := range ns {
		if !validNamespaceRune(r) {
			return "", fmt.Errorf("invalid dimension namespace %q", ns)
		}
	}
	for _, r := range p {
		if !validNamespaceRune(r) && r != '/' {
			return "", fmt.Errorf("invalid dimension path %q", p)
		}
	}
	if strings.Contains(p, "..") || strings.HasPrefix(p, "/") || strings.HasSuffix(p, "/") {
		return "", fmt.Errorf("invalid dimension path %q", p)
	}
	return ns + ":" + p, nil
}

func validNamespaceRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.'
}

func (r *registry) register(layout Layout) error {
	key, err := NormalizeKey(layout.Key)
	if err != nil {
		return err
	}
	layout.Key = key

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.layouts[key]; exists {
		return fmt.Errorf("dimension %s already registered", key)
	}
	r.layouts[key] = layout
	return nil
}

func (r *registry) resolve(key string) (Layout, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	layout, ok := r.layouts[key]
	return layout, ok
}

func (r *registry) list() []Layout {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.layouts) == 0 {
		return nil
	}

	keys := make([]string, 0, len(r.layouts))
	for key := range r.layouts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]Layout, 0, len(keys))
	for _, key := range keys {
		result = append(result, r.layouts[key])
	}
	return result
}
