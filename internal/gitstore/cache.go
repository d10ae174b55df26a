package gitstore

import (
	"container/list"
	"sync"
)

// cache holds the optional tree-decode and small-blob LRUs described
// in SPEC_FULL.md §5.1. Both are pure speedups: a miss here always
// falls through to a live go-git lookup, so disabling either (size or
// byte budget 0) changes nothing about correctness.
type cache struct {
	mu sync.Mutex

	treeCap     int
	treeList    *list.List
	treeIndex   map[string]*list.Element

	blobBudget  int64
	blobUsed    int64
	blobList    *list.List
	blobIndex   map[string]*list.Element
}

type treeEntry struct {
	key     string
	entries []TreeEntry
}

type blobEntry struct {
	key  string
	data []byte
}

const maxCachedBlobSize = 1 << 20 // 1 MiB; larger blobs never enter the cache.

func newCache(treeCap int, blobBudgetBytes int) *cache {
	return &cache{
		treeCap:    treeCap,
		treeList:   list.New(),
		treeIndex:  make(map[string]*list.Element),
		blobBudget: int64(blobBudgetBytes),
		blobList:   list.New(),
		blobIndex:  make(map[string]*list.Element),
	}
}

func (c *cache) getTree(key string) ([]TreeEntry, bool) {
	if c.treeCap <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.treeIndex[key]
	if !ok {
		return nil, false
	}
	c.treeList.MoveToFront(el)
	return el.Value.(*treeEntry).entries, true
}

func (c *cache) putTree(key string, entries []TreeEntry) {
	if c.treeCap <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.treeIndex[key]; ok {
		el.Value.(*treeEntry).entries = entries
		c.treeList.MoveToFront(el)
		return
	}
	el := c.treeList.PushFront(&treeEntry{key: key, entries: entries})
	c.treeIndex[key] = el
	for c.treeList.Len() > c.treeCap {
		c.evictOldestTree()
	}
}

func (c *cache) evictOldestTree() {
	back := c.treeList.Back()
	if back == nil {
		return
	}
	c.treeList.Remove(back)
	delete(c.treeIndex, back.Value.(*treeEntry).key)
}

func (c *cache) getBlob(key string) ([]byte, bool) {
	if c.blobBudget <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.blobIndex[key]
	if !ok {
		return nil, false
	}
	c.blobList.MoveToFront(el)
	return el.Value.(*blobEntry).data, true
}

func (c *cache) putBlob(key string, data []byte) {
	if c.blobBudget <= 0 || int64(len(data)) > maxCachedBlobSize {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.blobIndex[key]; ok {
		c.blobUsed -= int64(len(el.Value.(*blobEntry).data))
		el.Value.(*blobEntry).data = data
		c.blobUsed += int64(len(data))
		c.blobList.MoveToFront(el)
	} else {
		el := c.blobList.PushFront(&blobEntry{key: key, data: data})
		c.blobIndex[key] = el
		c.blobUsed += int64(len(data))
	}
	for c.blobUsed > c.blobBudget {
		back := c.blobList.Back()
		if back == nil {
			break
		}
		c.blobList.Remove(back)
		be := back.Value.(*blobEntry)
		delete(c.blobIndex, be.key)
		c.blobUsed -= int64(len(be.data))
	}
}
