// Copyright © 2018 The ELPS authors

package lisp_test

import (
	"testing"

	"github.com/luthersystems/elisp/elisptest"
	"github.com/luthersystems/elisp/lisp"
)

func TestSpecialForms(t *testing.T) {
	tests := elisptest.TestSuite{
		{"quote", elisptest.TestSequence{
			{"'a", "a", ""},
			{"'(1 . 2)", "(1 . 2)", ""},
			{"(quote (a b))", "(a b)", ""},
			{":keyword", ":keyword", ""},
			{`"str"`, `"str"`, ""},
		}},
		{"if", elisptest.TestSequence{
			{"(if t 1 (error \"else\"))", "1", ""},
			{"(if nil (error \"then\") 2 3)", "3", ""},
			{"(if nil 1)", "nil", ""},
		}},
		{"cond", elisptest.TestSequence{
			{"(cond ((= 1 2) 'a) ((= 1 1) 'b) (t (error \"late\")))", "b", ""},
			{"(cond ((+ 1 2)))", "3", ""},
			{"(cond (nil 1))", "nil", ""},
		}},
		{"and or", elisptest.TestSequence{
			{"(and)", "t", ""},
			{"(and 1 2)", "2", ""},
			{"(and nil (error \"unreached\"))", "nil", ""},
			{"(or)", "nil", ""},
			{"(or nil 3 (error \"unreached\"))", "3", ""},
		}},
		{"progn", elisptest.TestSequence{
			{"(progn)", "nil", ""},
			{"(progn 1 2 3)", "3", ""},
			{"(prog1 1 2 3)", "1", ""},
			{"(prog2 1 2 3)", "2", ""},
		}},
		{"while", elisptest.TestSequence{
			{"(let ((i 0) (s 0)) (while (< i 5) (setq s (+ s i) i (1+ i))) s)", "10", ""},
		}},
		{"let", elisptest.TestSequence{
			{"(let ((a 1) (b 2)) (list a b))", "(1 2)", ""},
			{"(let ((a 1)) (let ((a 2) (b a)) b))", "1", ""},
			{"(let* ((a 1) (b (+ a 1))) b)", "2", ""},
			{"(let (a (b)) (list a b))", "(nil nil)", ""},
			{"(let ((x 1)) (setq x 2) x)", "2", ""},
		}},
		{"setq", elisptest.TestSequence{
			{"(setq g1 1 g2 (+ g1 1))", "2", ""},
			{"(list g1 g2)", "(1 2)", ""},
			{"(setq)", "nil", ""},
			{"(setq nil 1)", "(setting-constant nil)", ""},
			{"(setq t 1)", "(setting-constant t)", ""},
		}},
		{"symbol evaluation", elisptest.TestSequence{
			{"undefined-var", "(void-variable undefined-var)", ""},
			{"(undefined-fn 1)", "(void-function undefined-fn)", ""},
			{"nil", "nil", ""},
			{"t", "t", ""},
		}},
	}
	elisptest.RunTestSuite(t, tests)
}

func TestFunctions(t *testing.T) {
	tests := elisptest.TestSuite{
		{"defun", elisptest.TestSequence{
			{"(defun two (a b) (list a b))", "two", ""},
			{"(two 1 2)", "(1 2)", ""},
			{"(condition-case err (two 1) (wrong-number-of-arguments (car err)))", "wrong-number-of-arguments", ""},
			{"(condition-case err (two 1 2 3) (wrong-number-of-arguments (car err)))", "wrong-number-of-arguments", ""},
		}},
		{"optional and rest", elisptest.TestSequence{
			{"(defun opt (a &optional b &rest c) (list a b c))", "opt", ""},
			{"(opt 1)", "(1 nil nil)", ""},
			{"(opt 1 2)", "(1 2 nil)", ""},
			{"(opt 1 2 3 4)", "(1 2 (3 4))", ""},
			{"(func-arity 'opt)", "(1 . many)", ""},
			{"(func-arity 'car)", "(1 . 1)", ""},
		}},
		{"no partial binding", elisptest.TestSequence{
			{"(defvar pa 'global)", "pa", ""},
			{"(defun bind-pa (pa b) pa)", "bind-pa", ""},
			{"(condition-case nil (bind-pa 1 2 3) (error pa))", "global", ""},
			{"(bind-pa 1 2)", "1", ""},
			{"pa", "global", ""},
		}},
		{"funcall apply", elisptest.TestSequence{
			{"(funcall #'+ 1 2 3)", "6", ""},
			{"(apply #'+ 1 '(2 3))", "6", ""},
			{"(apply '+ nil)", "0", ""},
			{"(funcall (lambda (x) (* x x)) 7)", "49", ""},
			{"((lambda (x) (1+ x)) 1)", "2", ""},
			{"(mapcar (lambda (x) (* 2 x)) '(1 2 3))", "(2 4 6)", ""},
		}},
		{"closures", elisptest.TestSequence{
			{"(defun make-counter () (let ((n 0)) (lambda () (setq n (1+ n)))))", "make-counter", ""},
			{"(progn (setq c1 (make-counter) c2 (make-counter)) nil)", "nil", ""},
			{"(funcall c1)", "1", ""},
			{"(funcall c1)", "2", ""},
			{"(funcall c2)", "1", ""},
			{"(let ((fns (let ((shared 0)) (list (lambda () (setq shared (1+ shared))) (lambda () shared))))) (funcall (car fns)) (funcall (car fns)) (funcall (cadr fns)))", "2", ""},
		}},
		{"recursion", elisptest.TestSequence{
			{"(defun fact (n) (if (<= n 1) 1 (* n (fact (1- n)))))", "fact", ""},
			{"(fact 10)", "3628800", ""},
			{"(fact 25)", "15511210043330985984000000", ""},
		}},
		{"eval depth", elisptest.TestSequence{
			{"(defun boom (n) (+ 1 (boom (1+ n))))", "boom", ""},
			{"(condition-case err (boom 0) (excessive-lisp-nesting (car err)))", "excessive-lisp-nesting", ""},
			{"(boom 0)", "(excessive-lisp-nesting 1600)", ""},
			{"(+ 1 1)", "2", ""},
		}},
	}
	elisptest.RunTestSuite(t, tests)
}

func TestDynamicBinding(t *testing.T) {
	tests := elisptest.TestSuite{
		{"special variables", elisptest.TestSequence{
			{"(defvar dyn 1)", "dyn", ""},
			{"(defun get-dyn () dyn)", "get-dyn", ""},
			{"(let ((dyn 2)) (get-dyn))", "2", ""},
			{"(get-dyn)", "1", ""},
			{"(special-variable-p 'dyn)", "t", ""},
		}},
		{"restored on throw", elisptest.TestSequence{
			{"(defvar dv 'outer)", "dv", ""},
			{"(catch 'k (let ((dv 'inner)) (throw 'k dv)))", "inner", ""},
			{"dv", "outer", ""},
		}},
		{"restored on error", elisptest.TestSequence{
			{"(defvar dv 'outer)", "dv", ""},
			{"(condition-case nil (let ((dv 'inner)) (error \"boom\")) (error dv))", "outer", ""},
			{"(let ((dv 'inner)) (car 1))", "(wrong-type-argument listp 1)", ""},
			{"dv", "outer", ""},
		}},
		{"defconst", elisptest.TestSequence{
			{"(defconst k 1 \"A constant.\")", "k", ""},
			{"k", "1", ""},
			{"(defvar k 2)", "k", ""},
			{"k", "1", ""},
		}},
	}
	elisptest.RunTestSuite(t, tests)
}

func TestDynamicBindingMode(t *testing.T) {
	tests := elisptest.TestSuite{
		{"free variables see callers", elisptest.TestSequence{
			{"(defun get-x () x)", "get-x", ""},
			{"(let ((x 5)) (get-x))", "5", ""},
			{"(get-x)", "(void-variable x)", ""},
		}},
	}
	elisptest.RunTestSuite(t, tests, lisp.WithLexicalBinding(false))

	lexical := elisptest.TestSuite{
		{"free variables are not captured", elisptest.TestSequence{
			{"(defun get-x () x)", "get-x", ""},
			{"(let ((x 5)) (get-x))", "(void-variable x)", ""},
		}},
	}
	elisptest.RunTestSuite(t, lexical, lisp.WithLexicalBinding(true))
}

func TestNonLocalExit(t *testing.T) {
	tests := elisptest.TestSuite{
		{"catch throw", elisptest.TestSequence{
			{"(catch 'x (throw 'x 42))", "42", ""},
			{"(catch 'x 1 2)", "2", ""},
			{"(catch 'outer (catch 'inner (throw 'outer 1)) 2)", "1", ""},
			{"(throw 'nope 1)", "(no-catch nope 1)", ""},
			{"(condition-case err (throw 'nope 1) (no-catch err))", "(no-catch nope 1)", ""},
		}},
		{"unwind-protect", elisptest.TestSequence{
			{"(defvar log nil)", "log", ""},
			{"(unwind-protect 1 (push 'normal log))", "1", ""},
			{"(catch 'done (unwind-protect (throw 'done 2) (push 'thrown log)))", "2", ""},
			{"(condition-case nil (unwind-protect (car 1) (push 'signaled log)) (wrong-type-argument 'handled))", "handled", ""},
			{"log", "(signaled thrown normal)", ""},
			{"(catch 'a (unwind-protect (unwind-protect (throw 'a 3) (push 'inner log)) (push 'outer log)))", "3", ""},
			{"(reverse (take 2 log))", "(inner outer)", ""},
		}},
		{"condition-case", elisptest.TestSequence{
			{"(condition-case nil (car 1) (error 'caught))", "caught", ""},
			{"(condition-case err (car 1) (wrong-type-argument err))", "(wrong-type-argument listp 1)", ""},
			{"(condition-case err (/ 1 0) ((wrong-type-argument arith-error) (car err)))", "arith-error", ""},
			{"(condition-case nil (+ 1 2) (error 'caught))", "3", ""},
			{"(condition-case v (+ 1 2) (:success (* v 10)))", "30", ""},
			{"(condition-case err (error \"Bad %d\" 5) (error (error-message-string err)))", `"Bad 5"`, ""},
			{"(condition-case nil (condition-case nil (car 1) (arith-error 'inner)) (error 'outer))", "outer", ""},
			{"(error \"boom\")", `(error "boom")`, ""},
		}},
		{"define-error", elisptest.TestSequence{
			{"(progn (define-error 'my-error \"My error\" 'arith-error) nil)", "nil", ""},
			{"(condition-case err (signal 'my-error '(1 2)) (arith-error err))", "(my-error 1 2)", ""},
			{"(get 'my-error 'error-conditions)", "(my-error arith-error error)", ""},
			{"(error-message-string '(my-error 1 2))", `"My error: 1, 2"`, ""},
			{"(signal 'my-error nil)", "(my-error)", ""},
		}},
	}
	elisptest.RunTestSuite(t, tests)
}

func TestMacros(t *testing.T) {
	tests := elisptest.TestSuite{
		{"defmacro", elisptest.TestSequence{
			{"(defmacro inc1 (a) `(+ ,a 1))", "inc1", ""},
			{"(inc1 5)", "6", ""},
			{"(let ((y 10)) (inc1 y))", "11", ""},
			{"(macroexpand '(inc1 x))", "(+ x 1)", ""},
			{"(macroexpand-1 '(inc1 x))", "(+ x 1)", ""},
			{"(macrop 'inc1)", "t", ""},
		}},
		{"backquote", elisptest.TestSequence{
			{"(let ((x 1) (xs '(2 3))) `(a ,x ,@xs b))", "(a 1 2 3 b)", ""},
			{"`(1 . ,(+ 1 1))", "(1 . 2)", ""},
			{"(let ((v 2)) `[1 ,v])", "[1 2]", ""},
		}},
		{"standard macros", elisptest.TestSequence{
			{"(when t 1 2)", "2", ""},
			{"(unless t 1)", "nil", ""},
			{"(let (acc) (dolist (x '(1 2 3) acc) (push x acc)))", "(3 2 1)", ""},
			{"(let ((n 0)) (dotimes (i 4) (setq n (+ n i))) n)", "6", ""},
			{"(let ((l (list 1 2))) (list (pop l) l))", "(1 (2))", ""},
			{"(let ((l (list 1 2))) (setf (car l) 9) l)", "(9 2)", ""},
			{"(ignore-errors (car 1))", "nil", ""},
		}},
	}
	elisptest.RunTestSuite(t, tests)
}

func TestOutput(t *testing.T) {
	tests := elisptest.TestSuite{
		{"printing", elisptest.TestSequence{
			{`(princ "hi")`, `"hi"`, "hi"},
			{`(prin1 "hi")`, `"hi"`, `"hi"`},
			{`(print 'sym)`, "sym", "\nsym\n"},
			{`(message "n=%d" 3)`, `"n=3"`, "n=3\n"},
			{`(format "%s|%S|%5.2f|%x" "a" "a" 3.14159 255)`, `"a|\"a\"| 3.14|ff"`, ""},
		}},
	}
	elisptest.RunTestSuite(t, tests)
}
