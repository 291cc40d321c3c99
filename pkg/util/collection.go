package util

import (
	"slices"
	"sync"
)

// Collection 以 GetKey 为键的有序集合，L 不为空时并发安全
type Collection[K comparable, T interface{ GetKey() K }] struct {
	L     *sync.RWMutex
	Items []T
}

func NewCollection[K comparable, T interface{ GetKey() K }]() *Collection[K, T] {
	return &Collection[K, T]{L: &sync.RWMutex{}}
}

func (c *Collection[K, T]) AddUnique(item T) (ok bool) {
	if c.L != nil {
		c.L.Lock()
		defer c.L.Unlock()
	}
	if c.index(item.GetKey()) != -1 {
		return false
	}
	c.Items = append(c.Items, item)
	return true
}

func (c *Collection[K, T]) index(key K) int {
	return slices.IndexFunc(c.Items, func(item T) bool {
		return item.GetKey() == key
	})
}

func (c *Collection[K, T]) Range(f func(T) bool) {
	if c.L != nil {
		c.L.RLock()
		defer c.L.RUnlock()
	}
	for _, item := range c.Items {
		if !f(item) {
			break
		}
	}
}

func (c *Collection[K, T]) RemoveByKey(key K) bool {
	if c.L != nil {
		c.L.Lock()
		defer c.L.Unlock()
	}
	if i := c.index(key); i != -1 {
		c.Items = slices.Delete(c.Items, i, i+1)
		return true
	}
	return false
}

func (c *Collection[K, T]) Len() int {
	if c.L != nil {
		c.L.RLock()
		defer c.L.RUnlock()
	}
	return len(c.Items)
}
