package database

import (
	"reflect"
	"sync"

	"spendlens/events"
	"spendlens/logger"

	"gorm.io/gorm"
)

// changeKeyer 可产生变更通知的模型
type changeKeyer interface {
	ChangeKey() (recordID string, userID string)
}

type pendingEvent struct {
	publish func(events.Event)
	event   events.Event
}

// pending 显式事务内产生的事件，按事务连接暂存，提交后发布，回滚后丢弃
var pending = struct {
	sync.Mutex
	m map[gorm.ConnPool][]pendingEvent
}{m: make(map[gorm.ConnPool][]pendingEvent)}

// RegisterChangeNotifier 注册 gorm 回调，在增删改提交后发布变更事件
// 写入代码无需显式发布，批量条件更新（没有模型实例）不产生事件。
// 显式事务必须通过 Transaction 执行，否则事务内的事件被丢弃
func RegisterChangeNotifier(db *gorm.DB, publish func(events.Event)) error {
	cb := db.Callback()
	const after = "gorm:commit_or_rollback_transaction"
	if err := cb.Create().After(after).Register("spendlens:notify_create", notifier(events.TypeInsert, publish)); err != nil {
		return err
	}
	if err := cb.Update().After(after).Register("spendlens:notify_update", notifier(events.TypeUpdate, publish)); err != nil {
		return err
	}
	return cb.Delete().After(after).Register("spendlens:notify_delete", notifier(events.TypeDelete, publish))
}

// Transaction 同 gorm.DB.Transaction，事务内的变更事件在提交成功后才发布
func Transaction(db *gorm.DB, fn func(tx *gorm.DB) error) (err error) {
	var key gorm.ConnPool
	defer func() {
		if key == nil {
			return
		}
		pending.Lock()
		queued := pending.m[key]
		delete(pending.m, key)
		pending.Unlock()

		// fn panic 时事务已回滚，丢弃事件后继续向上抛出
		if r := recover(); r != nil {
			panic(r)
		}
		if err != nil {
			return
		}
		for _, p := range queued {
			p.publish(p.event)
		}
	}()

	return db.Transaction(func(tx *gorm.DB) error {
		key = tx.Statement.ConnPool
		pending.Lock()
		pending.m[key] = nil
		pending.Unlock()
		return fn(tx)
	})
}

func notifier(changeType string, publish func(events.Event)) func(*gorm.DB) {
	return func(tx *gorm.DB) {
		if tx.Error != nil || tx.RowsAffected == 0 || tx.Statement == nil {
			return
		}
		table := tx.Statement.Table
		var out []events.Event
		for _, k := range changeKeys(tx.Statement.ReflectValue) {
			id, userID := k.ChangeKey()
			if id == "" || id == "0" {
				continue
			}
			out = append(out, events.Event{Table: table, Type: changeType, RecordID: id, UserID: userID})
		}
		if len(out) == 0 {
			return
		}

		// 默认事务已在此回调之前提交；连接仍是事务说明处于外层显式事务中
		if _, inTx := tx.Statement.ConnPool.(gorm.TxCommitter); !inTx {
			for _, e := range out {
				publish(e)
			}
			return
		}

		key := tx.Statement.ConnPool
		pending.Lock()
		queued, tracked := pending.m[key]
		if tracked {
			for _, e := range out {
				queued = append(queued, pendingEvent{publish: publish, event: e})
			}
			pending.m[key] = queued
		}
		pending.Unlock()
		if !tracked {
			logger.Named("database").Warn("change event inside untracked transaction dropped", "table", table, "type", changeType)
		}
	}
}

func changeKeys(v reflect.Value) []changeKeyer {
	v = reflect.Indirect(v)
	if !v.IsValid() {
		return nil
	}
	switch v.Kind() {
	case reflect.Struct:
		if k, ok := asChangeKeyer(v); ok {
			return []changeKeyer{k}
		}
	case reflect.Slice, reflect.Array:
		var keys []changeKeyer
		for i := 0; i < v.Len(); i++ {
			if k, ok := asChangeKeyer(reflect.Indirect(v.Index(i))); ok {
				keys = append(keys, k)
			}
		}
		return keys
	}
	return nil
}

func asChangeKeyer(v reflect.Value) (changeKeyer, bool) {
	if v.Kind() != reflect.Struct || !v.CanAddr() {
		return nil, false
	}
	k, ok := v.Addr().Interface().(changeKeyer)
	return k, ok
}
