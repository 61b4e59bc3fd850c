package fakes

import "sync"

type MediaTypeChecker struct {
	CheckExcludedMediaTypesCall struct {
		mutex     sync.Mutex
		CallCount int
		Receives  struct {
			Path     string
			Excluded []string
		}
		Returns struct {
			Bool  bool
			Error error
		}
		Stub func(string, []string) (bool, error)
	}
}

func (f *MediaTypeChecker) CheckExcludedMediaTypes(param1 string, param2 []string) (bool, error) {
	f.CheckExcludedMediaTypesCall.mutex.Lock()
	defer f.CheckExcludedMediaTypesCall.mutex.Unlock()
	f.CheckExcludedMediaTypesCall.CallCount++
	f.CheckExcludedMediaTypesCall.Receives.Path = param1
	f.CheckExcludedMediaTypesCall.Receives.Excluded = param2
	if f.CheckExcludedMediaTypesCall.Stub != nil {
		return f.CheckExcludedMediaTypesCall.Stub(param1, param2)
	}
	return f.CheckExcludedMediaTypesCall.Returns.Bool, f.CheckExcludedMediaTypesCall.Returns.Error
}
