package spec

import (
	"encoding/json"

	"github.com/zintix-labs/tablewatch/errs"
	"gopkg.in/yaml.v3"
)

// GetWatchSettingByYAML
// 會讀取 YAML 設定、補預設值並執行基本檢查後回傳。
func GetWatchSettingByYAML(data []byte) (*WatchSetting, error) {
	ws := &WatchSetting{}
	if err := yaml.Unmarshal(data, ws); err != nil {
		return nil, errs.Wrap(err, "failed to unmarshall yaml")
	}

	// 設定檔初始化
	if err := ws.init(); err != nil {
		return nil, errs.Wrap(err, "watch setting initialized err")
	}

	return ws, nil
}

// GetWatchSettingByJSON
// 會讀取 Json 設定、補預設值並執行基本檢查後回傳
func GetWatchSettingByJSON(data []byte) (*WatchSetting, error) {
	ws := &WatchSetting{}
	if err := json.Unmarshal(data, ws); err != nil {
		return nil, errs.Wrap(err, "can not unmarshall json byte")
	}

	// 設定檔初始化
	if err := ws.init(); err != nil {
		return nil, errs.Wrap(err, "watch setting initialized err")
	}

	return ws, nil
}
