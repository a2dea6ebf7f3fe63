package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// PassFields 提供单次保存过程的字段，过程内每条日志都带上 pass_id。
func PassFields(passID, root string) logrus.Fields {
	return logrus.Fields{
		"action":  "save_pass",
		"pass_id": passID,
		"root":    root,
	}
}

// ItemFields 标识出错的具体条目，dimension 为空时省略。
func ItemFields(category, identity, dimension string) logrus.Fields {
	fields := logrus.Fields{
		"category": category,
		"identity": identity,
	}
	if dimension != "" {
		fields["dimension"] = dimension
	}
	return fields
}
