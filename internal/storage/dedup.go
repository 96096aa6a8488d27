package storage

// Deduplicator 以 source_url 为规范身份收敛重复行：
// 同组内按 created_at 升序保留最早一条（"先见者胜"）。
// created_at 相同时按自增主键升序决胜，即按插入顺序，
// 这是实现选择而非对外承诺的次序。
type Deduplicator struct {
	store *Store
}

func NewDeduplicator(store *Store) *Deduplicator {
	return &Deduplicator{store: store}
}

// Clean 删除所有重复行并返回删除条数。幂等：对已干净的数据集返回 0。
func (d *Deduplicator) Clean() (int64, error) {
	var dupURLs []string
	err := d.store.DB.
		Raw(`SELECT source_url FROM items GROUP BY source_url HAVING COUNT(*) > 1`).
		Scan(&dupURLs).Error
	if err != nil {
		return 0, err
	}

	var removed int64
	for _, u := range dupURLs {
		var ids []uint
		err := d.store.DB.
			Raw(`SELECT id FROM items WHERE source_url = ? ORDER BY created_at ASC, id ASC`, u).
			Scan(&ids).Error
		if err != nil {
			return removed, err
		}
		if len(ids) <= 1 {
			continue
		}

		// 第一条（最老）保留，其余整组删除
		res := d.store.DB.Exec(`DELETE FROM items WHERE id IN ?`, ids[1:])
		if res.Error != nil {
			return removed, res.Error
		}
		removed += res.RowsAffected
	}

	return removed, nil
}
