// data_handler.go
package email

import (
	"fmt"
	"sync"

	"CarAds/src/datasource/file"

	"github.com/go-gota/gota/dataframe"
)

// DataFrameWrapper 保存最近一次从附件读取的数据表, 并发安全
type DataFrameWrapper struct {
	df     dataframe.DataFrame
	source string
	mu     sync.RWMutex
}

func (d *DataFrameWrapper) GetDF() dataframe.DataFrame {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.df
}

func (d *DataFrameWrapper) SetDF(df dataframe.DataFrame, source string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.df = df
	d.source = source
}

// Source 返回数据表来源的附件名
func (d *DataFrameWrapper) Source() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.source
}

// LoadAttachment 把附件内容读成数据表
func (d *DataFrameWrapper) LoadAttachment(a *Attachment, opts file.Options) error {
	if a == nil {
		return fmt.Errorf("附件为空")
	}
	df, err := file.LoadBytes(a.Filename, a.Content, opts)
	if err != nil {
		return fmt.Errorf("读取附件 %s 失败: %w", a.Filename, err)
	}
	d.SetDF(df, a.Filename)
	return nil
}
