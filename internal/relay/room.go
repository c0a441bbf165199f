package relay

import (
	"errors"
	"sort"
	"time"
)

var ErrRoomExists = errors.New("room_exists")
var ErrRoomReserved = errors.New("room_reserved")
var ErrRoomFull = errors.New("room_full")
var ErrRoomNotFound = errors.New("room_not_found")

// Room 一个命名会话，成员以连接 ID 记录
type Room struct {
	name         string
	host         string
	clients      map[string]struct{}
	passwordHash string
	sessionToken string
	createdAt    time.Time
}

func (r *Room) Name() string         { return r.name }
func (r *Room) Host() string         { return r.host }
func (r *Room) HasPassword() bool    { return r.passwordHash != "" }
func (r *Room) PasswordHash() string { return r.passwordHash }
func (r *Room) SessionToken() string { return r.sessionToken }
func (r *Room) CreatedAt() time.Time { return r.createdAt }

func (r *Room) Has(id string) bool {
	_, ok := r.clients[id]
	return ok
}

// Members 返回排序后的成员 ID
func (r *Room) Members() []string {
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Directory 房间名到房间的唯一注册表
//
// 由 Hub 协程独占。创建房间分两步：Reserve 占用名称，Create 提交；
// 预留期间同名的创建与加入都会被拒绝。
type Directory struct {
	maxClients int
	rooms      map[string]*Room
	reserved   map[string]string // 房间名 -> 预留者连接 ID
}

func NewDirectory(maxClients int) *Directory {
	return &Directory{
		maxClients: maxClients,
		rooms:      make(map[string]*Room),
		reserved:   make(map[string]string),
	}
}

func (d *Directory) Get(name string) (*Room, bool) {
	r, ok := d.rooms[name]
	return r, ok
}

func (d *Directory) Len() int { return len(d.rooms) }

// Reserved 返回名称是否处于预留中
func (d *Directory) Reserved(name string) bool {
	_, ok := d.reserved[name]
	return ok
}

// Reserve 为 owner 预留房间名
func (d *Directory) Reserve(name, owner string) error {
	if _, ok := d.rooms[name]; ok {
		return ErrRoomExists
	}
	if _, ok := d.reserved[name]; ok {
		return ErrRoomReserved
	}
	d.reserved[name] = owner
	return nil
}

// Release 释放 owner 持有的预留，非 owner 持有时不做任何事
func (d *Directory) Release(name, owner string) bool {
	if d.reserved[name] != owner {
		return false
	}
	delete(d.reserved, name)
	return true
}

// Create 以 host 为房主和唯一成员创建房间
//
// 名称被他人预留时失败；host 自己的预留会被消耗。
func (d *Directory) Create(name, host, passwordHash, sessionToken string, now time.Time) (*Room, error) {
	if _, ok := d.rooms[name]; ok {
		return nil, ErrRoomExists
	}
	if owner, ok := d.reserved[name]; ok {
		if owner != host {
			return nil, ErrRoomReserved
		}
		delete(d.reserved, name)
	}
	r := &Room{
		name:         name,
		host:         host,
		clients:      map[string]struct{}{host: {}},
		passwordHash: passwordHash,
		sessionToken: sessionToken,
		createdAt:    now,
	}
	d.rooms[name] = r
	return r, nil
}

// Join 把 id 加入 room；room 必须仍是注册表中的同一实例
func (d *Directory) Join(room *Room, id string) error {
	if cur, ok := d.rooms[room.name]; !ok || cur != room {
		return ErrRoomNotFound
	}
	if room.Has(id) {
		return nil
	}
	if len(room.clients) >= d.maxClients {
		return ErrRoomFull
	}
	room.clients[id] = struct{}{}
	return nil
}

// Leave 把 id 移出房间，返回 id 之前是否在房间中
func (d *Directory) Leave(name, id string) bool {
	r, ok := d.rooms[name]
	if !ok || !r.Has(id) {
		return false
	}
	delete(r.clients, id)
	if len(r.clients) == 0 {
		delete(d.rooms, name)
	}
	return true
}

// Delete 删除房间并返回被删除的实例
func (d *Directory) Delete(name string) (*Room, bool) {
	r, ok := d.rooms[name]
	if ok {
		delete(d.rooms, name)
	}
	return r, ok
}

// Full 房间是否已达上限
func (d *Directory) Full(room *Room) bool {
	return len(room.clients) >= d.maxClients
}
